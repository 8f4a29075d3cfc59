package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"sjsage522/tcasworker/config"
	"sjsage522/tcasworker/helpers"
	"sjsage522/tcasworker/internal/crawler"
	"sjsage522/tcasworker/internal/dataset"
	"sjsage522/tcasworker/internal/render"
	"sjsage522/tcasworker/pkg/errors"
	"sjsage522/tcasworker/services/publisher"
)

// Summary reports the outcome of one stage run
type Summary struct {
	Stage    string
	RowsIn   int
	RowsOut  int
	Skipped  int
	Duration time.Duration
}

// Worker runs stages: it drains the input dataset through the stage's unit
// and writes the output dataset once at the end
type Worker struct {
	renderer   render.Renderer
	publisher  publisher.Publisher
	logger     helpers.LoggerInterface
	workers    int
	rowRetries int
}

// NewWorker creates a new worker. workers > 1 processes rows concurrently,
// each goroutine on its own page.
func NewWorker(
	renderer render.Renderer,
	pub publisher.Publisher,
	logger helpers.LoggerInterface,
	workers int,
	rowRetries int,
) *Worker {
	if workers < 1 {
		workers = 1
	}
	if pub == nil {
		pub = publisher.NopPublisher{}
	}
	return &Worker{
		renderer:   renderer,
		publisher:  pub,
		logger:     logger,
		workers:    workers,
		rowRetries: rowRetries,
	}
}

// rowResult is the outcome of one input row
type rowResult struct {
	rows []dataset.Row
	err  error
}

// Run executes stage against sc. Per-row failures are logged and skipped;
// only fatal errors (schema, session, dataset I/O, cancellation) are returned.
func (w *Worker) Run(ctx context.Context, stage crawler.Stage, sc config.StageConfig) (Summary, error) {
	start := time.Now()
	summary := Summary{Stage: stage.Name()}

	input, err := w.readInput(stage, sc)
	if err != nil {
		return summary, err
	}
	summary.RowsIn = len(input)

	var results []rowResult
	if w.workers > 1 && len(input) > 1 {
		results, err = w.runParallel(ctx, stage, input)
	} else {
		results, err = w.runSequential(ctx, stage, input)
	}
	if err != nil {
		return summary, err
	}

	var output []dataset.Row
	for _, res := range results {
		if res.err != nil {
			summary.Skipped++
			w.logger.LogError(stage.Name(), res.err)
			continue
		}
		output = append(output, res.rows...)
	}
	summary.RowsOut = len(output)

	if err := dataset.WriteTable(sc.OutputPath, stage.OutputColumns(), output); err != nil {
		return summary, stageError(stage.Name(), err)
	}

	w.publish(stage, output)

	summary.Duration = time.Since(start)
	w.logger.LogInfo("%s: %d rows in, %d rows out, %d skipped (%s)",
		summary.Stage, summary.RowsIn, summary.RowsOut, summary.Skipped, summary.Duration.Round(time.Millisecond))
	return summary, nil
}

// readInput loads the stage's input dataset. The seed stage gets a single
// empty row.
func (w *Worker) readInput(stage crawler.Stage, sc config.StageConfig) ([]dataset.Row, error) {
	columns := stage.InputColumns()
	if columns == nil {
		return []dataset.Row{{}}, nil
	}

	table, err := dataset.ReadTable(sc.InputPath, columns...)
	if err != nil {
		return nil, stageError(stage.Name(), err)
	}
	return table.Rows, nil
}

func (w *Worker) runSequential(ctx context.Context, stage crawler.Stage, input []dataset.Row) ([]rowResult, error) {
	page, err := w.renderer.NewPage(ctx)
	if err != nil {
		return nil, stageError(stage.Name(), errors.NewSession("open page", err))
	}
	defer page.Close()

	results := make([]rowResult, len(input))
	for i, row := range input {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := w.processRow(ctx, stage, page, row)
		if errors.IsFatal(err) {
			return nil, stageError(stage.Name(), err)
		}
		results[i] = rowResult{rows: rows, err: err}
	}
	return results, nil
}

// runParallel fans rows out to w.workers goroutines, each holding its own
// page. Results are stored by input index so the output order matches the
// sequential run.
func (w *Worker) runParallel(ctx context.Context, stage crawler.Stage, input []dataset.Row) ([]rowResult, error) {
	results := make([]rowResult, len(input))
	jobs := make(chan int)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := range input {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	n := min(w.workers, len(input))
	for range n {
		g.Go(func() error {
			page, err := w.renderer.NewPage(gctx)
			if err != nil {
				return stageError(stage.Name(), errors.NewSession("open page", err))
			}
			defer page.Close()

			for i := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				rows, err := w.processRow(gctx, stage, page, input[i])
				if errors.IsFatal(err) {
					return stageError(stage.Name(), err)
				}
				results[i] = rowResult{rows: rows, err: err}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// processRow runs the unit on one row, retrying retryable failures up to
// rowRetries extra times
func (w *Worker) processRow(ctx context.Context, stage crawler.Stage, page render.Page, row dataset.Row) ([]dataset.Row, error) {
	for attempt := 0; ; attempt++ {
		rows, err := stage.Process(ctx, page, row)
		if err == nil {
			return rows, nil
		}
		if attempt >= w.rowRetries || !errors.IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		w.logger.LogInfo("%s: retrying row (attempt %d/%d): %v", stage.Name(), attempt+1, w.rowRetries, err)
	}
}

// publish fans the output rows out to the configured sink. Failures are
// logged; the dataset file is already written.
func (w *Worker) publish(stage crawler.Stage, rows []dataset.Row) {
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			w.logger.LogError(stage.Name(), errors.NewPublisher(stage.Name(), "encode row", err))
			return
		}
		if err := w.publisher.Publish(stage.Name(), data); err != nil {
			w.logger.LogError(stage.Name(), errors.NewPublisher(stage.Name(), "publish row", err))
			return
		}
	}

	if err := w.publisher.TrimStreams(); err != nil {
		w.logger.LogError("StreamTrimming", err)
	}
}

// stageError attributes err to stage when it carries no stage yet
func stageError(stage string, err error) error {
	if perr, ok := errors.As(err); ok {
		if perr.Stage == "" {
			perr.Stage = stage
		}
		return err
	}
	return fmt.Errorf("%s: %w", stage, err)
}
