package exporter

import "fmt"

// Sink receives export records in order.
type Sink interface {
	WriteRecord(rec Record) error
	WriteRecords(recs []Record) error
}

// writeAll writes recs one at a time through write.
func writeAll(write func(Record) error, recs []Record) error {
	for i, rec := range recs {
		if err := write(rec); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}
