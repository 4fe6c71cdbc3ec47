package telemetry

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// ExportLedger reads a JSONL audit ledger and POSTs one {"event": <record>}
// body per line to endpoint, counting successes. It is a thin batch
// exporter independent of the OTel metrics provider in otel.go, grounded
// on the original implementation's telemetry/exporter.py.
func ExportLedger(ctx context.Context, ledgerPath, endpoint string, client *http.Client) (int, error) {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}

	f, err := os.Open(ledgerPath)
	if err != nil {
		return 0, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	sent := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var record json.RawMessage
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}

		payload, err := json.Marshal(map[string]json.RawMessage{"event": record})
		if err != nil {
			continue
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return sent, fmt.Errorf("building export request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return sent, fmt.Errorf("exporting record: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			sent++
		}
	}
	if err := scanner.Err(); err != nil {
		return sent, fmt.Errorf("reading ledger: %w", err)
	}
	return sent, nil
}
