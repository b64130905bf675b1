package repository

import (
    "context"
    "fmt"
    "time"

    "AgriPulse/internal/domain/models"
    "AgriPulse/internal/domain/repository"
    pkgch "AgriPulse/pkg/clickhouse"
    pkgkafka "AgriPulse/pkg/kafka"
)

var priceColumns = []string{"crop", "market", "date", "price", "source"}

// ClickHouseStorage implements PriceStorage for ClickHouse.
type ClickHouseStorage struct {
    ch    *pkgch.Client
    table string
}

// NewClickHouseStorage creates price storage writing into the prices table.
func NewClickHouseStorage(ch *pkgch.Client) repository.PriceStorage {
    return &ClickHouseStorage{ch: ch, table: ch.Database() + "." + pkgch.TablePrices}
}

func (s *ClickHouseStorage) Store(ctx context.Context, o *models.PriceObservation) error {
    return s.StoreBatch(ctx, []*models.PriceObservation{o})
}

// StoreBatch inserts valid observations. ReplacingMergeTree keyed on
// (crop, market, date) makes a replayed observation overwrite the earlier one.
func (s *ClickHouseStorage) StoreBatch(ctx context.Context, obs []*models.PriceObservation) error {
    rows := priceRows(obs)
    if len(rows) == 0 {
        return nil
    }
    return s.ch.InsertRows(ctx, s.table, priceColumns, rows, 2000)
}

func priceRows(obs []*models.PriceObservation) [][]any {
    rows := make([][]any, 0, len(obs))
    for _, o := range obs {
        if o == nil || o.Crop == "" || o.Market == "" || o.Date.IsZero() {
            continue
        }
        src := o.Source
        if src == "" {
            src = "feed"
        }
        day := time.Date(o.Date.Year(), o.Date.Month(), o.Date.Day(), 0, 0, 0, 0, time.UTC)
        rows = append(rows, []any{o.Crop, o.Market, day, o.Price, src})
    }
    return rows
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
    return s.ch.Health(ctx)
}

func (s *ClickHouseStorage) Close() error {
    return nil // pool owned by pkg/clickhouse
}

// KafkaPublisher implements PricePublisher for Kafka.
type KafkaPublisher struct {
    producer *pkgkafka.Producer
    topic    string
}

// NewKafkaPublisher creates a price publisher keyed by crop/market.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.PricePublisher {
    return &KafkaPublisher{producer: producer, topic: topic}
}

func priceKey(o *models.PriceObservation) []byte {
    return []byte(o.Crop + "/" + o.Market)
}

func (p *KafkaPublisher) Publish(ctx context.Context, o *models.PriceObservation) error {
    return p.producer.Publish(ctx, p.topic, priceKey(o), o)
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, obs []*models.PriceObservation) error {
    if len(obs) == 0 {
        return nil
    }
    msgs := make([]pkgkafka.Message, 0, len(obs))
    for _, o := range obs {
        if o == nil {
            continue
        }
        msgs = append(msgs, pkgkafka.Message{Key: priceKey(o), Value: o})
    }
    return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
    return nil // producer closed by the app
}

// KafkaAnalysisPublisher emits AnalysisEvents keyed by market.
type KafkaAnalysisPublisher struct {
    producer *pkgkafka.Producer
    topic    string
}

func NewKafkaAnalysisPublisher(producer *pkgkafka.Producer, topic string) repository.AnalysisPublisher {
    return &KafkaAnalysisPublisher{producer: producer, topic: topic}
}

func (p *KafkaAnalysisPublisher) PublishAnalysis(ctx context.Context, ev *models.AnalysisEvent) error {
    if ev == nil {
        return nil
    }
    err := p.producer.PublishBatch(ctx, p.topic, []pkgkafka.Message{{
        Key:     []byte(ev.Market),
        Value:   ev,
        Headers: map[string]string{"trace_id": ev.ID},
    }})
    if err != nil {
        return fmt.Errorf("publish analysis %s: %w", ev.ID, err)
    }
    return nil
}

func (p *KafkaAnalysisPublisher) Close() error { return nil }

// NopAnalysisPublisher drops events. Used when Kafka is not configured.
type NopAnalysisPublisher struct{}

func (NopAnalysisPublisher) PublishAnalysis(context.Context, *models.AnalysisEvent) error { return nil }
func (NopAnalysisPublisher) Close() error                                               { return nil }

// ImportReference copies the CSV reference tables into ClickHouse.
func ImportReference(ctx context.Context, ch *pkgch.Client, src *CSVReferenceStore) error {
    snap := src.snap.Load()
    db := ch.Database()

    var prices [][]any
    for _, series := range snap.prices {
        for i := range series {
            o := series[i]
            if o.Source == "" {
                o.Source = "csv"
            }
            prices = append(prices, priceRows([]*models.PriceObservation{&o})...)
        }
    }
    if err := ch.InsertRows(ctx, db+"."+pkgch.TablePrices, priceColumns, prices, 2000); err != nil {
        return err
    }

    yield := make([][]any, 0, len(snap.yield))
    for crop, v := range snap.yield {
        yield = append(yield, []any{crop, v})
    }
    if err := ch.InsertRows(ctx, db+"."+pkgch.TableYield, []string{"crop", "yield_per_acre"}, yield, 0); err != nil {
        return err
    }

    cost := make([][]any, 0, len(snap.cost))
    for crop, v := range snap.cost {
        cost = append(cost, []any{crop, v})
    }
    if err := ch.InsertRows(ctx, db+"."+pkgch.TableCost, []string{"crop", "cost_per_acre"}, cost, 0); err != nil {
        return err
    }

    var acreage [][]any
    for _, recs := range snap.acreage {
        for _, r := range recs {
            acreage = append(acreage, []any{r.Crop, r.Market, uint16(r.Year), r.AreaAcres})
        }
    }
    return ch.InsertRows(ctx, db+"."+pkgch.TableAcreage, []string{"crop", "market", "year", "area_acres"}, acreage, 2000)
}
