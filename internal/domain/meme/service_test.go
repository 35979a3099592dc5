package meme

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/memegrid/memegrid-api/internal/domain/credit"
	"github.com/memegrid/memegrid-api/internal/pkg/ai"
	"github.com/memegrid/memegrid-api/internal/pkg/imaging"
)

/* =========================
   Fakes
   ========================= */

type fakeStore struct {
	mu    sync.Mutex
	memes map[uuid.UUID]*Meme
}

func newFakeStore() *fakeStore {
	return &fakeStore{memes: make(map[uuid.UUID]*Meme)}
}

func (f *fakeStore) Create(ctx context.Context, m *Meme) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.memes[m.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id uuid.UUID, status, failReason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.memes[id]; ok {
		m.Status = status
		m.FailReason = failReason
	}
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id, userID uuid.UUID) (*Meme, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.memes[id]; ok && m.UserID == userID {
		cp := *m
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Meme, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Meme
	for _, m := range f.memes {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) Delete(ctx context.Context, id, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.memes[id]; ok && m.UserID == userID {
		delete(f.memes, id)
		return nil
	}
	return ErrNotFound
}

type fakeLedger struct {
	balance    int64
	consumeErr error
	consumed   []int64
}

func (f *fakeLedger) GetBalance(ctx context.Context, userID uuid.UUID) (*credit.Balance, error) {
	return &credit.Balance{UserID: userID, Credits: f.balance}, nil
}

func (f *fakeLedger) Consume(ctx context.Context, userID uuid.UUID, amount int64, opts credit.ConsumeOptions) (*credit.ConsumeResult, error) {
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	f.consumed = append(f.consumed, amount)
	f.balance -= amount
	return &credit.ConsumeResult{
		Transaction: &credit.Transaction{ID: uuid.New(), UserID: userID, Credits: amount},
		Draws:       []credit.Draw{{GrantID: uuid.New(), Amount: amount, Remaining: f.balance}},
	}, nil
}

type fakeProvider struct {
	sheet []byte
	err   error
	calls int
}

func (f *fakeProvider) Generate(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ai.GenerateResult{ImageData: f.sheet, MimeType: "image/png", Model: "test-model"}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStorage) GetURL(key string) string {
	return "https://cdn.test/" + key
}

/* =========================
   Helpers
   ========================= */

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestService(t *testing.T, store *fakeStore, ledger *fakeLedger, provider *fakeProvider, files *memoryStorage) *Service {
	t.Helper()
	return NewService(store, ledger, provider, imaging.NewSplitter(imaging.DefaultConfig()), files, Config{
		Cost:          2,
		Prompt:        "make a 4x4 sticker grid",
		MaxUploadSize: 10 << 20,
	})
}

/* =========================
   Tests
   ========================= */

func TestGenerate(t *testing.T) {
	store := newFakeStore()
	ledger := &fakeLedger{balance: 10}
	provider := &fakeProvider{sheet: encodePNG(t, 512, 512)}
	files := newMemoryStorage()

	svc := newTestService(t, store, ledger, provider, files)
	userID := uuid.New()

	m, err := svc.Generate(context.Background(), userID, bytes.NewReader(encodePNG(t, 64, 64)))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if m.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", m.Status)
	}
	if m.TileCount != 16 {
		t.Errorf("tile count = %d, want 16", m.TileCount)
	}
	if m.CreditsSpent != 2 {
		t.Errorf("credits spent = %d, want 2", m.CreditsSpent)
	}

	if len(ledger.consumed) != 1 || ledger.consumed[0] != 2 {
		t.Errorf("ledger consumed = %v, want [2]", ledger.consumed)
	}

	// sheet + 16 tiles uploaded
	if len(files.objects) != 17 {
		t.Errorf("stored objects = %d, want 17", len(files.objects))
	}

	urls := svc.TileURLs(m)
	if len(urls) != 16 {
		t.Fatalf("tile urls = %d, want 16", len(urls))
	}
	for _, u := range urls {
		if !strings.HasPrefix(u, "https://cdn.test/memes/") {
			t.Errorf("unexpected tile url %s", u)
		}
	}
}

func TestGenerateInsufficientBalance(t *testing.T) {
	store := newFakeStore()
	ledger := &fakeLedger{balance: 1}
	provider := &fakeProvider{sheet: encodePNG(t, 512, 512)}

	svc := newTestService(t, store, ledger, provider, newMemoryStorage())

	_, err := svc.Generate(context.Background(), uuid.New(), bytes.NewReader(encodePNG(t, 64, 64)))
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	if provider.calls != 0 {
		t.Error("provider should not be called when the balance is short")
	}
	if len(ledger.consumed) != 0 {
		t.Error("nothing should be consumed on a failed balance check")
	}
}

func TestGenerateProviderFailure(t *testing.T) {
	store := newFakeStore()
	ledger := &fakeLedger{balance: 10}
	provider := &fakeProvider{err: ai.ErrGenerationFailed}

	svc := newTestService(t, store, ledger, provider, newMemoryStorage())
	userID := uuid.New()

	_, err := svc.Generate(context.Background(), userID, bytes.NewReader(encodePNG(t, 64, 64)))
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}

	if len(ledger.consumed) != 0 {
		t.Error("no credits should be spent when generation fails")
	}

	// The meme row records the failure
	memes, _, _ := store.ListByUser(context.Background(), userID, 10, 0)
	if len(memes) != 1 || memes[0].Status != StatusFailed {
		t.Errorf("expected one failed meme, got %+v", memes)
	}
}

func TestGenerateConsumeRaceLost(t *testing.T) {
	store := newFakeStore()
	ledger := &fakeLedger{balance: 10, consumeErr: credit.ErrInsufficientCredits}
	provider := &fakeProvider{sheet: encodePNG(t, 512, 512)}

	svc := newTestService(t, store, ledger, provider, newMemoryStorage())
	userID := uuid.New()

	_, err := svc.Generate(context.Background(), userID, bytes.NewReader(encodePNG(t, 64, 64)))
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	memes, _, _ := store.ListByUser(context.Background(), userID, 10, 0)
	if len(memes) != 1 || memes[0].Status != StatusFailed {
		t.Errorf("expected the meme marked failed, got %+v", memes)
	}
}

func TestGenerateRejectsInvalidUpload(t *testing.T) {
	svc := newTestService(t, newFakeStore(), &fakeLedger{balance: 10},
		&fakeProvider{sheet: encodePNG(t, 512, 512)}, newMemoryStorage())

	_, err := svc.Generate(context.Background(), uuid.New(), strings.NewReader("definitely not an image"))
	if !errors.Is(err, ErrInvalidUpload) {
		t.Fatalf("expected ErrInvalidUpload, got %v", err)
	}
}

func TestDeleteRemovesAssets(t *testing.T) {
	store := newFakeStore()
	ledger := &fakeLedger{balance: 10}
	provider := &fakeProvider{sheet: encodePNG(t, 512, 512)}
	files := newMemoryStorage()

	svc := newTestService(t, store, ledger, provider, files)
	userID := uuid.New()

	m, err := svc.Generate(context.Background(), userID, bytes.NewReader(encodePNG(t, 64, 64)))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if err := svc.Delete(context.Background(), m.ID, userID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if len(files.objects) != 0 {
		t.Errorf("stored objects = %d, want 0 after delete", len(files.objects))
	}
	if _, err := svc.Get(context.Background(), m.ID, userID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	if err := svc.Delete(context.Background(), uuid.New(), userID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown meme, got %v", err)
	}
}
