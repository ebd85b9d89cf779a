package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zhe.chen/landmark-story/internal/cache"
)

// fakeGenerator finishes each job after pendingPolls RUNNING answers.
type fakeGenerator struct {
	pendingPolls int
	status       Status
	submitErr    error

	mu        sync.Mutex
	submits   int32
	polls     map[string]int
	downloads []string
}

func (f *fakeGenerator) Submit(_ context.Context, opts SubmitOptions) (string, error) {
	n := atomic.AddInt32(&f.submits, 1)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return fmt.Sprintf("job-%d", n), nil
}

func (f *fakeGenerator) Poll(_ context.Context, jobID string) (PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.polls == nil {
		f.polls = make(map[string]int)
	}
	f.polls[jobID]++
	if f.polls[jobID] <= f.pendingPolls {
		return PollResult{Status: StatusRunning}, nil
	}
	status := f.status
	if status == "" {
		status = StatusSucceeded
	}
	return PollResult{Status: status, VideoURL: "https://videos.example/" + jobID + ".mp4", Message: "content moderation"}, nil
}

func (f *fakeGenerator) Download(_ context.Context, url, dest string) error {
	f.mu.Lock()
	f.downloads = append(f.downloads, url)
	f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("mp4:"+url), 0644)
}

func (f *fakeGenerator) submitCount() int {
	return int(atomic.LoadInt32(&f.submits))
}

func noSleep(policy PollPolicy) PollPolicy {
	policy.Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return policy
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name         string
		pendingPolls int
		status       Status
		attempts     int
		submitErr    error
		wantErr      error
		wantPolls    int
	}{
		{name: "succeeds on first poll", attempts: 3, wantPolls: 1},
		{name: "succeeds after running", pendingPolls: 2, attempts: 3, wantPolls: 3},
		{name: "times out", pendingPolls: 5, attempts: 3, wantErr: ErrTimeout, wantPolls: 3},
		{name: "job failed", status: StatusFailed, attempts: 3, wantErr: ErrJobFailed, wantPolls: 1},
		{name: "submit fails", submitErr: errors.New("quota exceeded"), attempts: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{pendingPolls: tt.pendingPolls, status: tt.status, submitErr: tt.submitErr}
			dest := filepath.Join(t.TempDir(), "clips", "shot_01.mp4")

			path, err := Generate(context.Background(), gen, SubmitOptions{Prompt: "sunrise over Giza"}, dest, noSleep(PollPolicy{Attempts: tt.attempts}))

			if tt.submitErr != nil {
				if !errors.Is(err, tt.submitErr) {
					t.Fatalf("error = %v, want %v", err, tt.submitErr)
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
			} else {
				if err != nil {
					t.Fatalf("Generate() error = %v", err)
				}
				if path != dest {
					t.Errorf("path = %q, want %q", path, dest)
				}
				if _, err := os.Stat(dest); err != nil {
					t.Errorf("clip not written: %v", err)
				}
			}
			if got := gen.polls["job-1"]; got != tt.wantPolls {
				t.Errorf("polls = %d, want %d", got, tt.wantPolls)
			}
		})
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	gen := &fakeGenerator{}
	if _, err := Generate(context.Background(), gen, SubmitOptions{}, filepath.Join(t.TempDir(), "a.mp4"), DefaultPollPolicy()); err == nil {
		t.Fatal("expected an error for an empty prompt")
	}
	if gen.submitCount() != 0 {
		t.Error("service should not be called")
	}
}

func TestGenerateSleepsBetweenPolls(t *testing.T) {
	gen := &fakeGenerator{pendingPolls: 2}
	var slept []time.Duration
	policy := PollPolicy{
		Attempts: 5,
		Interval: 10 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	if _, err := Generate(context.Background(), gen, SubmitOptions{Prompt: "p"}, filepath.Join(t.TempDir(), "a.mp4"), policy); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(slept) != 2 || slept[0] != 10*time.Second {
		t.Errorf("slept = %v, want two 10s waits", slept)
	}
}

func TestCachedGeneratorCallsServiceOnce(t *testing.T) {
	store := cache.NewMemoryStore()
	gen := &fakeGenerator{}
	cached := NewCachedGenerator(store, gen, noSleep(PollPolicy{Attempts: 2}), false)
	dir := t.TempDir()

	req := Request{
		Landmark:  "Pyramids of Giza",
		StoryType: "default#shot-01",
		Options:   SubmitOptions{Prompt: "aerial sunrise", Size: "1280*720"},
		Dest:      filepath.Join(dir, "shot_01.mp4"),
	}

	first, hit, err := cached.Generate(context.Background(), req)
	if err != nil || hit {
		t.Fatalf("first Generate() = %q, %v, %v", first, hit, err)
	}
	second, hit, err := cached.Generate(context.Background(), req)
	if err != nil || !hit {
		t.Fatalf("second Generate() = %q, %v, %v", second, hit, err)
	}
	if first != second {
		t.Errorf("paths differ: %q vs %q", first, second)
	}
	if gen.submitCount() != 1 {
		t.Errorf("service called %d times, want 1", gen.submitCount())
	}

	entry, err := store.Get(context.Background(), "pyramids of giza", "default#shot-01")
	if err != nil || entry == nil {
		t.Fatalf("cache entry missing: %v", err)
	}
	if entry.Metadata["prompt"] != "aerial sunrise" {
		t.Errorf("metadata = %v", entry.Metadata)
	}
}

func TestCachedGeneratorPromptChangeRegenerates(t *testing.T) {
	store := cache.NewMemoryStore()
	gen := &fakeGenerator{}
	cached := NewCachedGenerator(store, gen, noSleep(PollPolicy{Attempts: 2}), false)
	dir := t.TempDir()

	req := Request{
		Landmark:  "Luxor Temple",
		StoryType: cache.ClipStoryType("default", 1),
		Options:   SubmitOptions{Prompt: "avenue of sphinxes at dusk"},
		Dest:      filepath.Join(dir, "shot_01.mp4"),
	}
	if _, _, err := cached.Generate(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	req.Options.Prompt = "slow pan across the pylon"
	_, hit, err := cached.Generate(context.Background(), req)
	if err != nil || hit {
		t.Fatalf("Generate() with new prompt: hit = %v, err = %v", hit, err)
	}
	if gen.submitCount() != 2 {
		t.Errorf("service called %d times, want 2", gen.submitCount())
	}

	entry, _ := store.Get(context.Background(), "Luxor Temple", req.StoryType)
	if entry == nil || entry.Metadata["prompt"] != "slow pan across the pylon" {
		t.Errorf("entry = %+v, want the new prompt recorded", entry)
	}

	_, hit, _ = cached.Generate(context.Background(), req)
	if !hit {
		t.Error("same prompt should hit the cache")
	}
}

func TestCachedGeneratorConcurrentIdenticalRequests(t *testing.T) {
	store := cache.NewMemoryStore()
	gen := &fakeGenerator{pendingPolls: 1}
	cached := NewCachedGenerator(store, gen, noSleep(PollPolicy{Attempts: 3}), false)
	dest := filepath.Join(t.TempDir(), "shot_01.mp4")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := cached.Generate(context.Background(), Request{
				Landmark:  "Karnak Temple",
				StoryType: "default",
				Options:   SubmitOptions{Prompt: "columns at dusk"},
				Dest:      dest,
			})
			if err != nil {
				t.Errorf("Generate() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if gen.submitCount() != 1 {
		t.Errorf("service called %d times, want 1", gen.submitCount())
	}
}

func TestCachedGeneratorForceAndMissingFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store := cache.NewMemoryStore()
	if err := store.Put(ctx, "Luxor Temple", "default", filepath.Join(dir, "gone.mp4"), nil); err != nil {
		t.Fatal(err)
	}
	present := filepath.Join(dir, "present.mp4")
	if err := os.WriteFile(present, []byte("mp4"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "Abu Simbel", "default", present, nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		landmark    string
		force       bool
		wantSubmits int
	}{
		{name: "cached file missing regenerates", landmark: "Luxor Temple", wantSubmits: 1},
		{name: "cached file present is reused", landmark: "Abu Simbel", wantSubmits: 0},
		{name: "force ignores cache", landmark: "Abu Simbel", force: true, wantSubmits: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			cached := NewCachedGenerator(store, gen, noSleep(PollPolicy{Attempts: 1}), tt.force)

			_, _, err := cached.Generate(ctx, Request{
				Landmark:  tt.landmark,
				StoryType: "default",
				Options:   SubmitOptions{Prompt: "p"},
				Dest:      filepath.Join(dir, tt.name+".mp4"),
			})
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if gen.submitCount() != tt.wantSubmits {
				t.Errorf("submits = %d, want %d", gen.submitCount(), tt.wantSubmits)
			}
		})
	}
}

func TestCachedGeneratorDoesNotCacheFailures(t *testing.T) {
	store := cache.NewMemoryStore()
	gen := &fakeGenerator{status: StatusFailed}
	cached := NewCachedGenerator(store, gen, noSleep(PollPolicy{Attempts: 1}), false)

	_, _, err := cached.Generate(context.Background(), Request{
		Landmark: "Siwa Oasis", Options: SubmitOptions{Prompt: "p"}, Dest: filepath.Join(t.TempDir(), "a.mp4"),
	})
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("error = %v, want ErrJobFailed", err)
	}
	stats, _ := store.Stats(context.Background())
	if stats.TotalVideos != 0 {
		t.Errorf("stats = %+v, want empty cache", stats)
	}
}
