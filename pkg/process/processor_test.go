package process

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivics/gavel/pkg/config"
	"github.com/opencivics/gavel/pkg/extract"
	"github.com/opencivics/gavel/pkg/ident"
	"github.com/opencivics/gavel/pkg/llm"
	"github.com/opencivics/gavel/pkg/models"
	"github.com/opencivics/gavel/pkg/queue"
	"github.com/opencivics/gavel/pkg/store"
	testdb "github.com/opencivics/gavel/test/database"
)

// fakeDocExtractor serves canned text per URL.
type fakeDocExtractor struct {
	mu    sync.Mutex
	texts map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeDocExtractor) Extract(_ context.Context, url string) (*extract.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	text, ok := f.texts[url]
	if !ok {
		return nil, fmt.Errorf("no such document %q", url)
	}
	return &extract.Result{Text: text, PageCount: 3}, nil
}

// fakeSummarizer produces "Summary of <title>" per item and records what was
// requested. stopAfterChunks simulates a worker dying mid-batch by cancelling
// the job context after that many chunks were delivered.
type fakeSummarizer struct {
	mu              sync.Mutex
	chunkSize       int
	topics          []string
	errOn           map[string]error
	requested       []string
	prompts         []string
	stopAfterChunks int
	stop            context.CancelFunc
}

func (f *fakeSummarizer) SubmitBatch(ctx context.Context, reqs []llm.ItemRequest, _ string) <-chan llm.Chunk {
	size := f.chunkSize
	if size < 1 {
		size = 5
	}
	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		sent := 0
		for start := 0; start < len(reqs); start += size {
			end := start + size
			if end > len(reqs) {
				end = len(reqs)
			}
			results := make([]llm.ItemResult, 0, end-start)
			for _, req := range reqs[start:end] {
				f.mu.Lock()
				f.requested = append(f.requested, req.ItemID)
				f.mu.Unlock()
				if err, ok := f.errOn[req.ItemID]; ok {
					results = append(results, llm.ItemResult{ItemID: req.ItemID, Err: err})
					continue
				}
				results = append(results, llm.ItemResult{
					ItemID:  req.ItemID,
					Summary: "Summary of " + req.Title,
					Topics:  f.topics,
				})
			}
			select {
			case ch <- llm.Chunk{Results: results}:
			case <-ctx.Done():
				return
			}
			sent++
			if f.stopAfterChunks > 0 && sent == f.stopAfterChunks {
				// Wait for the consumer to come back for more, so its writes
				// for the delivered chunk have finished, then die.
				select {
				case ch <- llm.Chunk{}:
				case <-ctx.Done():
				}
				f.stop()
				return
			}
		}
	}()
	return ch
}

func (f *fakeSummarizer) Summarize(_ context.Context, prompt string) (string, []string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return "Canonical summary.", f.topics, nil
}

func (f *fakeSummarizer) requestedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requested...)
}

type procEnv struct {
	store *store.Store
	queue *queue.Queue
}

func newProcEnv(t *testing.T) *procEnv {
	db := testdb.SetupTestDB(t)
	return &procEnv{
		store: store.New(db),
		queue: queue.New(db, config.DefaultQueueConfig()),
	}
}

func (e *procEnv) processor(ext extract.Extractor, sum llm.Summarizer) *Processor {
	return New(e.store, e.queue, ext, sum, config.DefaultQueueConfig(), config.DefaultProcessConfig())
}

func (e *procEnv) seedCity(t *testing.T, banana string) {
	t.Helper()
	require.NoError(t, e.store.UpsertCity(context.Background(),
		&models.City{Banana: banana, Name: banana, Vendor: "granicus", Active: true}))
}

func (e *procEnv) enqueueMeetingJob(t *testing.T, banana, meetingID string) *models.QueueJob {
	t.Helper()
	ctx := context.Background()
	_, _, err := e.queue.Enqueue(ctx, queue.EnqueueRequest{
		Type:     models.JobTypeMeeting,
		Payload:  models.MeetingJobPayload{MeetingID: meetingID},
		DedupKey: models.MeetingDedupKey(meetingID),
		Banana:   banana,
		Priority: 100,
	})
	require.NoError(t, err)
	job, err := e.queue.Lease(ctx, "test-worker")
	require.NoError(t, err)
	return job
}

func TestProcessJob_ItemLevelMeeting(t *testing.T) {
	env := newProcEnv(t)
	ctx := context.Background()
	env.seedCity(t, "paloaltoCA")

	date := time.Date(2025, 11, 10, 18, 0, 0, 0, time.UTC)
	meetingID := ident.MeetingID("paloaltoCA", "evt-1", date)
	require.NoError(t, env.store.UpsertMeeting(ctx, &models.Meeting{
		ID: meetingID, Banana: "paloaltoCA", Title: "City Council", Date: date,
	}))

	mkItem := func(seq int, title string, atts ...models.Attachment) string {
		id := ident.ItemID(meetingID, seq, fmt.Sprintf("it-%d", seq))
		require.NoError(t, env.store.UpsertItem(ctx, &models.AgendaItem{
			ID: id, MeetingID: meetingID, Sequence: seq, Title: title, Attachments: atts,
		}))
		return id
	}
	rollCallID := mkItem(1, "Roll Call")
	budgetID := mkItem(2, "Approve Budget Amendment",
		models.Attachment{URL: "https://pa.gov/budget.pdf", Name: "Staff Report"})
	emptyID := mkItem(3, "Sewer Easement Acceptance",
		models.Attachment{URL: "https://pa.gov/broken.pdf", Name: "Staff Report"})
	bikesID := mkItem(4, "Bike Lane Pilot Extension",
		models.Attachment{URL: "https://pa.gov/bikes.pdf", Name: "Staff Report"})

	ext := &fakeDocExtractor{
		texts: map[string]string{
			"https://pa.gov/budget.pdf": "Amends the FY26 operating budget.",
			"https://pa.gov/bikes.pdf": "Extends the pilot. Questions: clerk@paloalto.gov " +
				"or call (650) 555-0101",
		},
		errs: map[string]error{
			"https://pa.gov/broken.pdf": fmt.Errorf("%w: status 422", extract.ErrBadDocument),
		},
	}
	sum := &fakeSummarizer{topics: []string{"budget", "transportation"}}
	p := env.processor(ext, sum)

	job := env.enqueueMeetingJob(t, "paloaltoCA", meetingID)
	require.NoError(t, p.ProcessJob(ctx, job))

	done, err := env.queue.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, done.Status)

	// Only the two substantive items with text reached the LLM.
	assert.ElementsMatch(t, []string{budgetID, bikesID}, sum.requestedIDs())

	rollCall, err := env.store.GetItem(ctx, rollCallID)
	require.NoError(t, err)
	require.NotNil(t, rollCall.FilterReason)
	assert.Equal(t, "procedural", *rollCall.FilterReason)
	assert.Nil(t, rollCall.Summary)

	emptyItem, err := env.store.GetItem(ctx, emptyID)
	require.NoError(t, err)
	require.NotNil(t, emptyItem.FilterReason)
	assert.Equal(t, "empty extraction", *emptyItem.FilterReason)

	budget, err := env.store.GetItem(ctx, budgetID)
	require.NoError(t, err)
	require.NotNil(t, budget.Summary)
	assert.Equal(t, "Summary of Approve Budget Amendment", *budget.Summary)
	assert.Equal(t, []string{"budget", "transportation"}, budget.Topics)

	meeting, err := env.store.GetMeeting(ctx, meetingID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingCompleted, meeting.ProcessingStatus)
	assert.ElementsMatch(t, []string{"budget", "transportation"}, meeting.Topics)

	// Participation details came out of the last item's document.
	require.NotNil(t, meeting.Participation)
	assert.Equal(t, "(650) 555-0101", meeting.Participation.Phone)
	assert.Equal(t, "clerk@paloalto.gov", meeting.Participation.Email)
}

func TestProcessJob_ResumesAfterMidBatchCrash(t *testing.T) {
	env := newProcEnv(t)
	ctx := context.Background()
	env.seedCity(t, "sfCA")

	date := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	meetingID := ident.MeetingID("sfCA", "evt-9", date)
	require.NoError(t, env.store.UpsertMeeting(ctx, &models.Meeting{
		ID: meetingID, Banana: "sfCA", Title: "Board of Supervisors", Date: date,
	}))

	ext := &fakeDocExtractor{texts: map[string]string{}}
	itemIDs := make([]string, 0, 10)
	for seq := 1; seq <= 10; seq++ {
		url := fmt.Sprintf("https://sf.gov/doc-%d.pdf", seq)
		ext.texts[url] = fmt.Sprintf("Legislation text %d.", seq)
		id := ident.ItemID(meetingID, seq, fmt.Sprintf("it-%d", seq))
		require.NoError(t, env.store.UpsertItem(ctx, &models.AgendaItem{
			ID: id, MeetingID: meetingID, Sequence: seq,
			Title:       fmt.Sprintf("File %d", seq),
			Attachments: []models.Attachment{{URL: url, Name: "Legislation"}},
		}))
		itemIDs = append(itemIDs, id)
	}

	job := env.enqueueMeetingJob(t, "sfCA", meetingID)

	// First run: the worker dies after the first chunk of four was written.
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	dying := &fakeSummarizer{chunkSize: 4, topics: []string{"housing"},
		stopAfterChunks: 1, stop: cancel}
	require.Error(t, env.processor(ext, dying).ProcessJob(jobCtx, job))
	assert.ElementsMatch(t, itemIDs[:4], dying.requestedIDs())

	// The crash left the lease and the meeting status dangling, exactly like a
	// killed process would.
	stuck, err := env.queue.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobProcessing, stuck.Status)
	meeting, err := env.store.GetMeeting(ctx, meetingID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingInProgress, meeting.ProcessingStatus)

	for i, id := range itemIDs {
		item, err := env.store.GetItem(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, i < 4, item.HasSummary(), "item %d", i+1)
	}

	// Second run: stale-lease recovery hands the job back, and only the
	// unwritten items are re-requested.
	n, err := env.queue.RecoverStale(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	healthy := &fakeSummarizer{chunkSize: 4, topics: []string{"housing"}}
	p := env.processor(ext, healthy)
	job2, err := env.queue.Lease(ctx, "test-worker")
	require.NoError(t, err)
	assert.Equal(t, job.ID, job2.ID)
	assert.Equal(t, 1, job2.RetryCount)
	require.NoError(t, p.ProcessJob(ctx, job2))

	assert.ElementsMatch(t, itemIDs[4:], healthy.requestedIDs())
	for _, id := range itemIDs {
		item, err := env.store.GetItem(ctx, id)
		require.NoError(t, err)
		assert.True(t, item.HasSummary())
	}
	meeting, err = env.store.GetMeeting(ctx, meetingID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingCompleted, meeting.ProcessingStatus)
}

func TestProcessJob_ExtractorOutageRetriesItemLevel(t *testing.T) {
	env := newProcEnv(t)
	ctx := context.Background()
	env.seedCity(t, "sanjoseCA")

	date := time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)
	meetingID := ident.MeetingID("sanjoseCA", "evt-2", date)
	require.NoError(t, env.store.UpsertMeeting(ctx, &models.Meeting{
		ID: meetingID, Banana: "sanjoseCA", Title: "City Council", Date: date,
	}))
	itemID := ident.ItemID(meetingID, 1, "it-1")
	require.NoError(t, env.store.UpsertItem(ctx, &models.AgendaItem{
		ID: itemID, MeetingID: meetingID, Sequence: 1, Title: "Transit Funding Agreement",
		Attachments: []models.Attachment{{URL: "https://sj.gov/staff.pdf", Name: "Staff Report"}},
	}))

	ext := &fakeDocExtractor{errs: map[string]error{
		"https://sj.gov/staff.pdf": fmt.Errorf("extractor returned 503"),
	}}
	p := env.processor(ext, &fakeSummarizer{})

	job := env.enqueueMeetingJob(t, "sanjoseCA", meetingID)
	require.Error(t, p.ProcessJob(ctx, job))

	// The outage is not laundered into a filtered item or a completed job.
	item, err := env.store.GetItem(ctx, itemID)
	require.NoError(t, err)
	assert.Nil(t, item.FilterReason)
	assert.Nil(t, item.Summary)

	retried, err := env.queue.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, retried.Status)
	assert.Equal(t, 1, retried.RetryCount)
	assert.Equal(t, 80, retried.Priority)

	// Burn the rest of the retry budget while the extractor stays down.
	for i := 0; i < 3; i++ {
		j, err := env.queue.Lease(ctx, "test-worker")
		require.NoError(t, err)
		require.Error(t, p.ProcessJob(ctx, j))
	}

	dead, err := env.queue.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobDeadLetter, dead.Status)
	assert.Equal(t, 3, dead.RetryCount)

	meeting, err := env.store.GetMeeting(ctx, meetingID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingFailed, meeting.ProcessingStatus)
}

func TestProcessJob_PartialOutageKeepsWritesAndResumes(t *testing.T) {
	env := newProcEnv(t)
	ctx := context.Background()
	env.seedCity(t, "fresnoCA")

	date := time.Date(2025, 11, 24, 0, 0, 0, 0, time.UTC)
	meetingID := ident.MeetingID("fresnoCA", "evt-8", date)
	require.NoError(t, env.store.UpsertMeeting(ctx, &models.Meeting{
		ID: meetingID, Banana: "fresnoCA", Title: "City Council", Date: date,
	}))

	mkItem := func(seq int, title, url string) string {
		id := ident.ItemID(meetingID, seq, fmt.Sprintf("it-%d", seq))
		require.NoError(t, env.store.UpsertItem(ctx, &models.AgendaItem{
			ID: id, MeetingID: meetingID, Sequence: seq, Title: title,
			Attachments: []models.Attachment{{URL: url, Name: "Staff Report"}},
		}))
		return id
	}
	okID := mkItem(1, "Water Rate Study", "https://fresno.gov/water.pdf")
	lostID := mkItem(2, "Airport Lease Renewal", "https://fresno.gov/lease.pdf")

	ext := &fakeDocExtractor{
		texts: map[string]string{"https://fresno.gov/water.pdf": "Rate study findings."},
		errs:  map[string]error{"https://fresno.gov/lease.pdf": fmt.Errorf("extractor returned 502")},
	}
	first := &fakeSummarizer{topics: []string{"utilities"}}
	require.Error(t, env.processor(ext, first).ProcessJob(ctx,
		env.enqueueMeetingJob(t, "fresnoCA", meetingID)))

	// The reachable item was summarized before the job failed; the lost one
	// stays pending without a filter reason.
	okItem, err := env.store.GetItem(ctx, okID)
	require.NoError(t, err)
	assert.True(t, okItem.HasSummary())
	lost, err := env.store.GetItem(ctx, lostID)
	require.NoError(t, err)
	assert.Nil(t, lost.Summary)
	assert.Nil(t, lost.FilterReason)

	// The extractor recovers; the retry only re-requests the lost item.
	ext.mu.Lock()
	delete(ext.errs, "https://fresno.gov/lease.pdf")
	ext.texts["https://fresno.gov/lease.pdf"] = "Extends the lease ten years."
	ext.mu.Unlock()

	second := &fakeSummarizer{topics: []string{"contracts"}}
	job, err := env.queue.Lease(ctx, "test-worker")
	require.NoError(t, err)
	require.NoError(t, env.processor(ext, second).ProcessJob(ctx, job))

	assert.ElementsMatch(t, []string{lostID}, second.requestedIDs())
	meeting, err := env.store.GetMeeting(ctx, meetingID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingCompleted, meeting.ProcessingStatus)
}

func TestSharedContextStableOrder(t *testing.T) {
	ext := &fakeDocExtractor{texts: map[string]string{
		"https://x/a.pdf": "alpha",
		"https://x/b.pdf": "bravo",
		"https://x/c.pdf": "charlie",
	}}
	cache := extract.NewDocumentCache(ext, 2)
	defer cache.Release()
	cache.Fill(context.Background(), []string{"https://x/c.pdf", "https://x/a.pdf", "https://x/b.pdf"})

	shared := map[string]bool{
		"https://x/c.pdf": true, "https://x/a.pdf": true, "https://x/b.pdf": true,
	}
	p := &Processor{}
	for i := 0; i < 10; i++ {
		assert.Equal(t, "alpha\n\nbravo\n\ncharlie", p.sharedContext(cache, shared))
	}
}

func TestProcessJob_MatterCanonicalAndBackfill(t *testing.T) {
	env := newProcEnv(t)
	ctx := context.Background()
	env.seedCity(t, "nashvilleTN")

	d1 := time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC)
	m1 := ident.MeetingID("nashvilleTN", "e1", d1)
	m2 := ident.MeetingID("nashvilleTN", "e2", d2)
	for id, date := range map[string]time.Time{m1: d1, m2: d2} {
		require.NoError(t, env.store.UpsertMeeting(ctx, &models.Meeting{
			ID: id, Banana: "nashvilleTN", Title: "Metro Council", Date: date,
		}))
	}

	matterID := ident.MatterID("nashvilleTN", "BL2025-1098", "")
	_, created, err := env.store.GetOrCreateMatter(ctx, &models.Matter{
		ID: matterID, Banana: "nashvilleTN", File: "BL2025-1098",
		Type: "Ordinance", Title: "Rezone 12th Ave S", FirstSeen: d1,
	})
	require.NoError(t, err)
	require.True(t, created)

	attA := models.Attachment{URL: "https://nash.gov/bl1098.pdf", Name: "Legislation"}
	attB := models.Attachment{URL: "https://nash.gov/sketch.pdf", Name: "Site Sketch"}

	// First reading already got its own summary; the second reading carries
	// the fuller attachment set and is still blank.
	item1 := ident.ItemID(m1, 12, "e1-it")
	item2 := ident.ItemID(m2, 7, "e2-it")
	require.NoError(t, env.store.UpsertItem(ctx, &models.AgendaItem{
		ID: item1, MeetingID: m1, Sequence: 12, Title: "Rezone 12th Ave S",
		MatterID: &matterID, Attachments: []models.Attachment{attA},
	}))
	require.NoError(t, env.store.SetItemResult(ctx, item1, "First reading summary.", []string{"land use"}))
	require.NoError(t, env.store.UpsertItem(ctx, &models.AgendaItem{
		ID: item2, MeetingID: m2, Sequence: 7, Title: "Rezone 12th Ave S",
		MatterID: &matterID, Attachments: []models.Attachment{attA, attB},
	}))

	ext := &fakeDocExtractor{texts: map[string]string{
		attA.URL: "An ordinance rezoning parcels on 12th Avenue South.",
		attB.URL: "Site sketch narrative.",
	}}
	sum := &fakeSummarizer{topics: []string{"land use", "housing"}}
	p := env.processor(ext, sum)

	_, _, err = env.queue.Enqueue(ctx, queue.EnqueueRequest{
		Type: models.JobTypeMatter,
		Payload: models.MatterJobPayload{
			MatterID: matterID, RepresentativeMeetingID: m2, ItemIDs: []string{item1, item2},
		},
		DedupKey: models.MatterDedupKey(matterID),
		Banana:   "nashvilleTN",
		Priority: 50,
	})
	require.NoError(t, err)
	job, err := env.queue.Lease(ctx, "test-worker")
	require.NoError(t, err)
	require.NoError(t, p.ProcessJob(ctx, job))

	matter, err := env.store.GetMatter(ctx, matterID)
	require.NoError(t, err)
	require.NotNil(t, matter.CanonicalSummary)
	assert.Equal(t, "Canonical summary.", *matter.CanonicalSummary)
	assert.Equal(t, []string{"land use", "housing"}, matter.CanonicalTopics)

	// The stored hash covers the union of attachments across appearances, so
	// the orchestrator's change detection on the next sync compares equal.
	wantHash := ident.NewAttachmentHasher(nil).Hash([]models.Attachment{attA, attA, attB})
	require.NotNil(t, matter.AttachmentHash)
	assert.Equal(t, wantHash, *matter.AttachmentHash)

	// Back-fill fills the blank appearance and leaves the summarized one alone.
	got1, err := env.store.GetItem(ctx, item1)
	require.NoError(t, err)
	assert.Equal(t, "First reading summary.", *got1.Summary)
	got2, err := env.store.GetItem(ctx, item2)
	require.NoError(t, err)
	require.NotNil(t, got2.Summary)
	assert.Equal(t, "Canonical summary.", *got2.Summary)

	// The matter prompt carried the public file number.
	require.Len(t, sum.prompts, 1)
	assert.Contains(t, sum.prompts[0], "BL2025-1098")
}

func TestProcessJob_ItemLevelCanonicalHashesAppearanceUnion(t *testing.T) {
	env := newProcEnv(t)
	ctx := context.Background()
	env.seedCity(t, "austinTX")

	date := time.Date(2025, 11, 13, 0, 0, 0, 0, time.UTC)
	meetingID := ident.MeetingID("austinTX", "evt-6", date)
	require.NoError(t, env.store.UpsertMeeting(ctx, &models.Meeting{
		ID: meetingID, Banana: "austinTX", Title: "City Council", Date: date,
	}))

	matterID := ident.MatterID("austinTX", "25-0440", "")
	_, _, err := env.store.GetOrCreateMatter(ctx, &models.Matter{
		ID: matterID, Banana: "austinTX", File: "25-0440",
		Type: "Ordinance", Title: "Short-Term Rental Rules", FirstSeen: date,
	})
	require.NoError(t, err)

	attA := models.Attachment{URL: "https://atx.gov/str-ord.pdf", Name: "Legislation"}
	attB := models.Attachment{URL: "https://atx.gov/str-memo.pdf", Name: "Staff Report"}

	// The matter is heard twice in one meeting, each item carrying a
	// different slice of the document set.
	mkItem := func(seq int, att models.Attachment) string {
		id := ident.ItemID(meetingID, seq, fmt.Sprintf("it-%d", seq))
		require.NoError(t, env.store.UpsertItem(ctx, &models.AgendaItem{
			ID: id, MeetingID: meetingID, Sequence: seq, Title: "Short-Term Rental Rules",
			MatterID: &matterID, Attachments: []models.Attachment{att},
		}))
		_, err := env.store.RecordAppearance(ctx, &models.MatterAppearance{
			MatterID: matterID, MeetingID: meetingID, ItemID: id, Sequence: seq,
		}, date)
		require.NoError(t, err)
		return id
	}
	mkItem(4, attA)
	mkItem(9, attB)

	ext := &fakeDocExtractor{texts: map[string]string{
		attA.URL: "Ordinance regulating short-term rentals.",
		attB.URL: "Staff memo on enforcement.",
	}}
	p := env.processor(ext, &fakeSummarizer{topics: []string{"housing"}})
	job := env.enqueueMeetingJob(t, "austinTX", meetingID)
	require.NoError(t, p.ProcessJob(ctx, job))

	// The stored hash spans both appearances, matching what the enqueue
	// decider computes on the next sync; a lone item's attachments would
	// trigger a spurious "attachments changed" re-enqueue every pass.
	matter, err := env.store.GetMatter(ctx, matterID)
	require.NoError(t, err)
	require.NotNil(t, matter.AttachmentHash)
	wantHash := ident.NewAttachmentHasher(nil).Hash([]models.Attachment{attA, attB})
	assert.Equal(t, wantHash, *matter.AttachmentHash)
	require.NotNil(t, matter.CanonicalSummary)
	assert.Equal(t, "Summary of Short-Term Rental Rules", *matter.CanonicalSummary)
}

func TestProcessJob_MonolithicPacket(t *testing.T) {
	env := newProcEnv(t)
	ctx := context.Background()
	env.seedCity(t, "berkeleyCA")

	date := time.Date(2025, 11, 18, 0, 0, 0, 0, time.UTC)
	meetingID := ident.MeetingID("berkeleyCA", "evt-3", date)
	packetURL := "https://berkeley.gov/packet.pdf"
	require.NoError(t, env.store.UpsertMeeting(ctx, &models.Meeting{
		ID: meetingID, Banana: "berkeleyCA", Title: "City Council", Date: date,
		PacketURL: &packetURL,
	}))

	ext := &fakeDocExtractor{texts: map[string]string{
		packetURL: "Full agenda packet. Email comments to council@berkeleyca.gov",
	}}
	sum := &fakeSummarizer{topics: []string{"environment"}}
	p := env.processor(ext, sum)

	job := env.enqueueMeetingJob(t, "berkeleyCA", meetingID)
	require.NoError(t, p.ProcessJob(ctx, job))

	meeting, err := env.store.GetMeeting(ctx, meetingID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingCompleted, meeting.ProcessingStatus)
	require.NotNil(t, meeting.Summary)
	assert.Equal(t, "Canonical summary.", *meeting.Summary)
	assert.Equal(t, []string{"environment"}, meeting.Topics)
	require.NotNil(t, meeting.Participation)
	assert.Equal(t, "council@berkeleyca.gov", meeting.Participation.Email)
}

func TestProcessJob_NoSummarizerFailsTerminally(t *testing.T) {
	env := newProcEnv(t)
	ctx := context.Background()
	env.seedCity(t, "paloaltoCA")

	date := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	meetingID := ident.MeetingID("paloaltoCA", "evt-5", date)
	require.NoError(t, env.store.UpsertMeeting(ctx, &models.Meeting{
		ID: meetingID, Banana: "paloaltoCA", Title: "City Council", Date: date,
	}))

	p := env.processor(&fakeDocExtractor{}, nil)
	job := env.enqueueMeetingJob(t, "paloaltoCA", meetingID)
	require.Error(t, p.ProcessJob(ctx, job))

	failed, err := env.queue.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, failed.Status)
	assert.Equal(t, 0, failed.RetryCount)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "no API key")
}

func TestProcessJob_RetryLadderEndsInDeadLetter(t *testing.T) {
	env := newProcEnv(t)
	ctx := context.Background()
	env.seedCity(t, "oaklandCA")

	date := time.Date(2025, 11, 12, 0, 0, 0, 0, time.UTC)
	meetingID := ident.MeetingID("oaklandCA", "evt-7", date)
	packetURL := "https://oakland.gov/packet.pdf"
	require.NoError(t, env.store.UpsertMeeting(ctx, &models.Meeting{
		ID: meetingID, Banana: "oaklandCA", Title: "City Council", Date: date,
		PacketURL: &packetURL,
	}))

	ext := &fakeDocExtractor{errs: map[string]error{
		packetURL: fmt.Errorf("extractor timeout"),
	}}
	p := env.processor(ext, &fakeSummarizer{})

	job := env.enqueueMeetingJob(t, "oaklandCA", meetingID)
	require.Error(t, p.ProcessJob(ctx, job))

	retried, err := env.queue.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, retried.Status)
	assert.Equal(t, 1, retried.RetryCount)
	assert.Equal(t, 80, retried.Priority) // 100 minus one retry penalty

	// Burn the rest of the retry budget.
	for i := 0; i < 3; i++ {
		j, err := env.queue.Lease(ctx, "test-worker")
		require.NoError(t, err)
		require.Error(t, p.ProcessJob(ctx, j))
	}

	dead, err := env.queue.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobDeadLetter, dead.Status)
	assert.Equal(t, 3, dead.RetryCount)

	meeting, err := env.store.GetMeeting(ctx, meetingID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingFailed, meeting.ProcessingStatus)
}

func TestProcessJob_MalformedMatterIDFailsTerminally(t *testing.T) {
	env := newProcEnv(t)
	ctx := context.Background()

	_, _, err := env.queue.Enqueue(ctx, queue.EnqueueRequest{
		Type:     models.JobTypeMatter,
		Payload:  models.MatterJobPayload{MatterID: "not-a-matter", ItemIDs: []string{"x"}},
		DedupKey: "matter://not-a-matter",
		Banana:   "paloaltoCA",
		Priority: 10,
	})
	require.NoError(t, err)
	job, err := env.queue.Lease(ctx, "test-worker")
	require.NoError(t, err)

	p := env.processor(&fakeDocExtractor{}, &fakeSummarizer{})
	require.Error(t, p.ProcessJob(ctx, job))

	failed, err := env.queue.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, failed.Status)
}
