// Package main hosts the wigle-fetch entrypoint.
//
// Architecture overview:
//   - Input: one whitespace separated row (min_lat max_lat min_lon max_lon) is read from the coordinates file named by
//     --csv_file at the zero-based index --row_num.
//   - Fetch loop: internal/wigle.Fetcher pages through the WiGLE network search API with the Basic credential from
//     --token, following the searchAfter cursor until the first page's totalResults is reached or the cursor runs
//     out. Timeouts and connection failures are retried with a fixed delay; 401, 429 and other statuses end the run.
//   - Filtering & output: results whose rcois field carries an OpenRoaming consortium code are appended to
//     {output.dir}/{row}_{min_lat}_{min_lon}_{timestamp}.csv. The header is fixed by the first matching batch.
//   - Delivery: the finished CSV is hashed, optionally uploaded to a BlobStore (memory/local/GCS), recorded in a run
//     store (Postgres when db.dsn is set) and announced on Pub/Sub when a topic is configured.
//   - Configuration & plumbing: Viper populates config from env (WIGLE_ prefix) and an optional YAML file; zap
//     provides structured logging on stdout; Prometheus collectors can be dumped to a node_exporter textfile.
//
// Quick checklist:
//   - Run locally: go run ./cmd/wigle-fetch --token $WIGLE_TOKEN --csv_file coords.txt --row_num 0
//   - Tune pacing with WIGLE_WIGLE_REQUEST_DELAY, WIGLE_WIGLE_RETRY_DELAY and WIGLE_WIGLE_MAX_RETRIES.
//   - The exit status is non-zero whenever the run stopped before the result set was exhausted.
package main
