// Package domain normalizes daily COVID-19 counts from heterogeneous upstream
// feeds into one per-location daily series and derives rolling statistics.
//
// # Data Sources
//
// County case feed (The New York Times, us-counties.csv):
//
//	date,county,state,fips,cases,deaths
//	2020-03-14,Allegheny,Pennsylvania,42003,2,0
//
//	Counts are cumulative running totals. States use their full names.
//	A county appears from its first reported case onward.
//
// Test tracking feed (The COVID Tracking Project, states/daily.csv):
//
//	date,state,positiveIncrease,deathIncrease,totalTestResultsIncrease,hospitalizedIncrease,...
//	20200314,PA,12,0,80,
//
//	Counts are already daily increments. Dates are YYYYMMDD, newest first.
//	States use postal abbreviations. There is no county granularity.
//
// Census county population estimates (co-est2019-alldata.csv):
//
//	SUMLEV,REGION,DIVISION,STATE,COUNTY,STNAME,CTYNAME,...,POPESTIMATE2019,...
//	050,1,2,42,003,Pennsylvania,Allegheny County,...,1216045,...
//
//	SUMLEV 040 rows are state totals and are dropped; only SUMLEV 050
//	(county) rows are kept so sums never double count.
//
// # Series Conventions
//
// A [Series] holds exactly one row per calendar day (UTC midnight) between its
// first and last date. Values are always "new events on that day"; cumulative
// feeds are differenced by [ToDeltas] so callers never see running totals.
// Undefined values (a moving average without enough history, a positivity
// rate over zero tests) are NaN and serialize as JSON null.
//
// Negative deltas, produced when a source revises a running total downward,
// are passed through unchanged.
//
// # Locations
//
// A [Location] is nation > state > county. Only the USA is supported. State
// identifiers are stored as postal abbreviations; [LookupState] accepts either
// form.
package domain
