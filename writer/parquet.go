// Package writer archives normalized bars back to the blob store as
// Parquet, so downstream tooling can query imported history without
// re-parsing CSV.
package writer

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	pqwriter "github.com/xitongsys/parquet-go/writer"

	"fximport/logger"
	"fximport/models"
	"fximport/store"
)

// QuoteRecord is the parquet row layout for archived quote bars.
type QuoteRecord struct {
	Symbol   string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Start    int64   `parquet:"name=start, type=INT64"`
	PeriodMs int64   `parquet:"name=period_ms, type=INT64"`
	BidOpen  float64 `parquet:"name=bid_open, type=DOUBLE"`
	BidHigh  float64 `parquet:"name=bid_high, type=DOUBLE"`
	BidLow   float64 `parquet:"name=bid_low, type=DOUBLE"`
	BidClose float64 `parquet:"name=bid_close, type=DOUBLE"`
	AskOpen  float64 `parquet:"name=ask_open, type=DOUBLE"`
	AskHigh  float64 `parquet:"name=ask_high, type=DOUBLE"`
	AskLow   float64 `parquet:"name=ask_low, type=DOUBLE"`
	AskClose float64 `parquet:"name=ask_close, type=DOUBLE"`
	Volume   int64   `parquet:"name=volume, type=INT64"`
}

// TradeRecord is the parquet row layout for archived trade bars.
type TradeRecord struct {
	Symbol   string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Start    int64   `parquet:"name=start, type=INT64"`
	PeriodMs int64   `parquet:"name=period_ms, type=INT64"`
	Open     float64 `parquet:"name=open, type=DOUBLE"`
	High     float64 `parquet:"name=high, type=DOUBLE"`
	Low      float64 `parquet:"name=low, type=DOUBLE"`
	Close    float64 `parquet:"name=close, type=DOUBLE"`
	Volume   int64   `parquet:"name=volume, type=INT64"`
}

// memoryFileWriter implements ParquetFile interface for in-memory writing
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{
		buffer: &bytes.Buffer{},
	}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	// Writing is append-only; seeking is never exercised.
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error) {
	return mfw.buffer.Read(b)
}

func (mfw *memoryFileWriter) Write(b []byte) (int, error) {
	return mfw.buffer.Write(b)
}

func (mfw *memoryFileWriter) Close() error {
	return nil
}

func (mfw *memoryFileWriter) Bytes() []byte {
	return mfw.buffer.Bytes()
}

// Archiver writes bar batches to the store as parquet blobs.
type Archiver struct {
	blob        store.Blob
	compression string
	log         *logger.Log
}

// NewArchiver creates an archiver using the given compression codec
// (snappy, gzip, lzo or uncompressed).
func NewArchiver(blob store.Blob, compression string) *Archiver {
	return &Archiver{
		blob:        blob,
		compression: compression,
		log:         logger.GetLogger(),
	}
}

// ParquetKey derives the archive key from a CSV storage key.
func ParquetKey(csvKey string) string {
	return strings.TrimSuffix(csvKey, ".csv") + ".parquet"
}

// ArchiveQuotes writes the quote bars of one subscription under the
// parquet twin of its CSV key.
func (a *Archiver) ArchiveQuotes(ctx context.Context, csvKey string, bars []models.QuoteBar) error {
	if len(bars) == 0 {
		return nil
	}

	fw := newMemoryFileWriter()
	pw, err := pqwriter.NewParquetWriter(fw, new(QuoteRecord), 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = a.codec()

	for _, b := range bars {
		record := QuoteRecord{
			Symbol:   b.Symbol,
			Start:    b.Start.UnixMilli(),
			PeriodMs: b.Period.Milliseconds(),
			BidOpen:  b.Bid.Open,
			BidHigh:  b.Bid.High,
			BidLow:   b.Bid.Low,
			BidClose: b.Bid.Close,
			AskOpen:  b.Ask.Open,
			AskHigh:  b.Ask.High,
			AskLow:   b.Ask.Low,
			AskClose: b.Ask.Close,
			Volume:   b.Volume,
		}
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return fmt.Errorf("failed to write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet writing: %w", err)
	}

	return a.upload(ctx, csvKey, fw.Bytes(), len(bars))
}

// ArchiveTrades writes the trade bars of one subscription under the
// parquet twin of its CSV key.
func (a *Archiver) ArchiveTrades(ctx context.Context, csvKey string, bars []models.TradeBar) error {
	if len(bars) == 0 {
		return nil
	}

	fw := newMemoryFileWriter()
	pw, err := pqwriter.NewParquetWriter(fw, new(TradeRecord), 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = a.codec()

	for _, b := range bars {
		record := TradeRecord{
			Symbol:   b.Symbol,
			Start:    b.Start.UnixMilli(),
			PeriodMs: b.Period.Milliseconds(),
			Open:     b.Price.Open,
			High:     b.Price.High,
			Low:      b.Price.Low,
			Close:    b.Price.Close,
			Volume:   b.Volume,
		}
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return fmt.Errorf("failed to write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet writing: %w", err)
	}

	return a.upload(ctx, csvKey, fw.Bytes(), len(bars))
}

func (a *Archiver) codec() parquet.CompressionCodec {
	switch a.compression {
	case "snappy":
		return parquet.CompressionCodec_SNAPPY
	case "gzip":
		return parquet.CompressionCodec_GZIP
	case "lzo":
		return parquet.CompressionCodec_LZO
	default:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
}

func (a *Archiver) upload(ctx context.Context, csvKey string, data []byte, records int) error {
	key := ParquetKey(csvKey)
	batchID := uuid.New().String()

	if err := a.blob.Put(ctx, key, data); err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}

	entry := a.log.WithComponent("archiver").WithFields(logger.Fields{
		"batch_id":    batchID,
		"key":         key,
		"records":     records,
		"file_size":   len(data),
		"compression": a.compression,
	})
	entry.Info("bars archived")
	logger.LogDataFlowEntry(entry, csvKey, key, records, "parquet")
	a.log.LogMetric("archiver", "bars_archived", records, "counter", logger.Fields{"key": key})
	return nil
}
