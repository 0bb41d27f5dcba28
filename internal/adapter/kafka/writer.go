package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/config"
	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/report"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes each location series of a report as one message.
// It implements pipeline.Sink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured report topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// Write publishes every trace of every figure in a single WriteMessages call.
func (w *Writer) Write(ctx context.Context, r *report.Report) error {
	var msgs []kafkago.Message
	for _, fig := range r.Figures {
		for _, tr := range fig.Series {
			msg, err := serializeTrace(r, fig, tr)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	w.logger.Info("report published", "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// SeriesMessage is the JSON value of a published message.
type SeriesMessage struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Metric      string               `json:"metric"`
	Window      int                  `json:"window"`
	Column      string               `json:"column"`
	Location    domain.Location      `json:"location"`
	Label       string               `json:"label"`
	Records     []domain.DailyRecord `json:"records"`
}

// MessageKey keys messages by metric, window and location so every update of
// one series lands on the same partition.
func MessageKey(fig report.Figure, tr report.Trace) string {
	return fig.Metric + "|" + strconv.Itoa(fig.Window) + "|" + tr.Label
}

func serializeTrace(r *report.Report, fig report.Figure, tr report.Trace) (kafkago.Message, error) {
	data, err := json.Marshal(SeriesMessage{
		GeneratedAt: r.GeneratedAt,
		Metric:      fig.Metric,
		Window:      fig.Window,
		Column:      fig.Column,
		Location:    tr.Location,
		Label:       tr.Label,
		Records:     tr.Records,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s series: %w", tr.Label, err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey(fig, tr)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "metric", Value: []byte(fig.Metric)},
			{Key: "column", Value: []byte(fig.Column)},
			{Key: "generated_at", Value: []byte(r.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
