package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core"
)

// readBarFeed parses the engine's CSV bar-feed format, one closed bar per
// line: instrument_id,timeframe,rfc3339_ts,open,high,low,close,volume. Both
// `run` (a live-ish feed piped over stdin) and `replay` (a recorded file)
// share this reader, since neither subcommand terminates an exchange
// protocol directly (ingestion/venue adapters are external collaborators).
func readBarFeed(r io.Reader) ([]core.Bar, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = 8
	cr.TrimLeadingSpace = true

	var bars []core.Bar
	lineNo := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bar feed: line %d: %w", lineNo+1, err)
		}
		lineNo++

		ts, err := time.Parse(time.RFC3339, record[2])
		if err != nil {
			return nil, fmt.Errorf("bar feed: line %d: bad timestamp %q: %w", lineNo, record[2], err)
		}
		open, oerr := strconv.ParseFloat(record[3], 64)
		high, herr := strconv.ParseFloat(record[4], 64)
		low, lerr := strconv.ParseFloat(record[5], 64)
		closeP, cerr := strconv.ParseFloat(record[6], 64)
		vol, verr := strconv.ParseFloat(record[7], 64)
		for _, e := range []error{oerr, herr, lerr, cerr, verr} {
			if e != nil {
				return nil, fmt.Errorf("bar feed: line %d: %w", lineNo, e)
			}
		}

		bars = append(bars, core.Bar{
			InstrumentID: record[0],
			TF:           core.Timeframe(record[1]),
			TS:           ts,
			Open:         open,
			High:         high,
			Low:          low,
			Close:        closeP,
			Volume:       vol,
		})
	}
	return bars, nil
}
