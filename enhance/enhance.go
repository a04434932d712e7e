// Package enhance drives the per-row enrichment pipeline: decide which
// rows need work, fetch the book's pages, extract the derived fields, and
// checkpoint the dataset as it goes.
package enhance

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/enhance-goodreads-export/config"
	"github.com/aluiziolira/enhance-goodreads-export/extract"
	"github.com/aluiziolira/enhance-goodreads-export/fetch"
	"github.com/aluiziolira/enhance-goodreads-export/models"
)

// PageFetcher is the slice of the fetcher the orchestrator needs.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ProgressFunc reports one row being processed.
type ProgressFunc func(index, total int, rec *models.Record)

// Orchestrator owns the output file for the duration of one run and
// processes rows strictly sequentially.
type Orchestrator struct {
	cfg     *config.Config
	fetcher PageFetcher
	metrics *fetch.Metrics

	// Progress is called before each row is processed. Defaults to a
	// log line per row.
	Progress ProgressFunc
}

// New builds an orchestrator around an authenticated fetcher.
func New(cfg *config.Config, fetcher PageFetcher) *Orchestrator {
	o := &Orchestrator{cfg: cfg, fetcher: fetcher}
	if f, ok := fetcher.(*fetch.Fetcher); ok {
		o.metrics = f.Metrics
	}
	o.Progress = func(index, total int, rec *models.Record) {
		slog.Info(fmt.Sprintf("book %d of %d", index+1, total),
			slog.String("title", rec.Title()),
			slog.String("author", rec.Author()),
		)
	}
	return o
}

// Run executes the whole pipeline. Partial progress is checkpointed to the
// export file; a failed run resumes where the last checkpoint left off.
func (o *Orchestrator) Run(ctx context.Context) (*models.EnhanceResult, error) {
	result := &models.EnhanceResult{StartTime: time.Now()}
	defer func() {
		result.EndTime = time.Now()
	}()

	ds, err := LoadDataset(o.cfg.CSVPath)
	if err != nil {
		return result, err
	}
	ds.EnsureDerivedColumns()
	result.TotalRecords = len(ds.Records)

	carried := 0
	if o.cfg.UpdatePath != "" {
		old, err := LoadDataset(o.cfg.UpdatePath)
		if err != nil {
			return result, err
		}
		carried = carryForward(ds, old)
		slog.Info("carried forward derived fields from previous run",
			slog.Int("records", carried),
			slog.String("from", o.cfg.UpdatePath),
		)
	}
	result.CarriedForward = carried
	for i := 0; i < carried; i++ {
		o.metrics.IncBook("carried_forward")
	}

	work := selectWork(ds, o.cfg.Force)
	result.Skipped = len(ds.Records) - len(work)
	slog.Info("selected records to process",
		slog.Int("total", len(ds.Records)),
		slog.Int("to_process", len(work)),
		slog.Bool("force", o.cfg.Force),
	)

	if len(work) == 0 {
		// Nothing to fetch, but carried-forward fields and freshly
		// appended columns still have to reach the file.
		if err := o.checkpoint(ds, result); err != nil {
			return result, err
		}
		return result, nil
	}

	for i, rec := range work {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		o.Progress(i, len(work), rec)
		rec.State = models.StateFetching

		if err := o.enrich(ctx, rec, result); err != nil {
			rec.State = models.StateFailed
			result.Failed++
			result.FailedBookIDs = append(result.FailedBookIDs, rec.BookID())
			o.metrics.IncBook("failed")
			if !o.cfg.IgnoreErrors {
				return result, err
			}
			slog.Error("error updating book, skipping",
				slog.String("book_id", rec.BookID()),
				slog.String("title", rec.Title()),
				slog.Any("error", err),
			)
		} else {
			rec.State = models.StateEnriched
			result.Processed++
			o.metrics.IncBook("enriched")
		}

		if (i+1)%o.cfg.CheckpointEvery == 0 || i == len(work)-1 {
			if err := o.checkpoint(ds, result); err != nil {
				return result, err
			}
		}
	}

	if r, ok := o.fetcher.(interface{ Retries() int }); ok {
		result.RetryCount = r.Retries()
	}

	return result, nil
}

// enrich populates the derived fields of one record from its three pages:
// the reading activity page, the book page, and the shelves page.
func (o *Orchestrator) enrich(ctx context.Context, rec *models.Record, result *models.EnhanceResult) error {
	bookID := rec.BookID()

	activity, err := o.fetch(ctx, o.cfg.ReviewURL+bookID, result)
	if err != nil {
		return err
	}
	activityDoc, err := goquery.NewDocumentFromReader(bytes.NewReader(activity))
	if err != nil {
		return extract.ErrExtraction{Err: fmt.Errorf("parse activity page: %w", err)}
	}
	rec.Set(models.ColReadDates, models.SerializeIntervals(extract.ReadingIntervals(activityDoc)))

	bookPage, err := o.fetch(ctx, o.cfg.BookURL+bookID, result)
	if err != nil {
		return err
	}
	nRatings, err := extract.RatingsCount(bookPage)
	if err != nil {
		return err
	}
	rec.Set(models.ColNRatings, nRatings)

	shelvesPath, ok := extract.ShelvesPath(bookPage)
	if !ok {
		slog.Warn("no link to the shelves page on the book page, not adding genres",
			slog.String("book_id", bookID),
		)
		return nil
	}
	shelvesPage, err := o.fetch(ctx, o.cfg.BaseURL+"/"+shelvesPath, result)
	if err != nil {
		return err
	}
	shelvesDoc, err := goquery.NewDocumentFromReader(bytes.NewReader(shelvesPage))
	if err != nil {
		return extract.ErrExtraction{Err: fmt.Errorf("parse shelves page: %w", err)}
	}
	genres := extract.Genres(shelvesDoc, rec.Author(), extract.FilterOptions{
		MinVotes:        o.cfg.MinGenreVotes,
		MinVoteFraction: o.cfg.MinGenreVoteFraction,
	})
	rec.Set(models.ColGenres, models.SerializeGenres(genres))
	return nil
}

func (o *Orchestrator) fetch(ctx context.Context, url string, result *models.EnhanceResult) ([]byte, error) {
	result.FetchCount++
	return o.fetcher.Fetch(ctx, url)
}

func (o *Orchestrator) checkpoint(ds *Dataset, result *models.EnhanceResult) error {
	slog.Debug("saving export file", slog.String("path", o.cfg.CSVPath))
	if err := ds.Write(o.cfg.CSVPath); err != nil {
		return err
	}
	result.Checkpoints++
	o.metrics.IncCheckpoint()
	return nil
}

// carryForward copies the derived fields from a previous run for records
// whose shelf and read date did not change, and returns how many records
// no longer need a fetch because of it.
func carryForward(ds, old *Dataset) int {
	oldByID := old.ByID()
	carried := 0
	for _, rec := range ds.Records {
		prev := oldByID[rec.BookID()]
		if !rec.Unchanged(prev) {
			continue
		}
		for _, col := range []string{models.ColReadDates, models.ColGenres, models.ColNRatings} {
			if value := prev.Get(col); value != "" {
				rec.Set(col, value)
			}
		}
		if !rec.NeedsEnrichment() {
			rec.State = models.StateCarriedForward
			carried++
		}
	}
	return carried
}

// selectWork picks the rows to process: everything under force, otherwise
// only rows that carry none of the derived fields.
func selectWork(ds *Dataset, force bool) []*models.Record {
	var work []*models.Record
	for _, rec := range ds.Records {
		if force || rec.NeedsEnrichment() {
			work = append(work, rec)
			if rec.State != models.StateCarriedForward {
				rec.State = models.StatePending
			}
		}
	}
	return work
}
