package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pdf-tools-bot/internal/domain"
	"pdf-tools-bot/internal/scratch"
	"pdf-tools-bot/internal/session"
	"pdf-tools-bot/pkg/logger"

	"github.com/stretchr/testify/require"
)

// Fake documents are text files: a %PDF- header followed by one "page:" line
// per page. That is enough for content sniffing and for checking page order.

func fakePDF(labels ...string) string {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	for _, l := range labels {
		b.WriteString("page:" + l + "\n")
	}
	return b.String()
}

func numberedPDF(n int) string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprint(i + 1)
	}
	return fakePDF(labels...)
}

func readPages(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.Contains(data, []byte("encrypted")) {
		return nil, domain.ErrEncryptedDocument
	}
	if bytes.Contains(data, []byte("damaged")) {
		return nil, domain.ErrCorruptDocument
	}
	var pages []string
	for _, line := range strings.Split(string(data), "\n") {
		if l, ok := strings.CutPrefix(line, "page:"); ok {
			pages = append(pages, l)
		}
	}
	return pages, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeCaps struct {
	combineCalls  atomic.Int32
	combineErr    error
	combineGate   chan struct{}
	combineActive chan struct{}
	shrinkRatio   float64
}

func (f *fakeCaps) capabilities() Capabilities {
	return Capabilities{
		Combiner:     f,
		Extractor:    f,
		Recompressor: f,
		Rasterizer:   f,
		Packer:       f,
		Counter:      f,
		Archiver:     f,
	}
}

func (f *fakeCaps) Combine(ctx context.Context, inputs []string, output string) error {
	f.combineCalls.Add(1)
	if f.combineActive != nil {
		close(f.combineActive)
	}
	if f.combineGate != nil {
		<-f.combineGate
	}
	if f.combineErr != nil {
		return f.combineErr
	}
	var all []string
	for _, in := range inputs {
		pages, err := readPages(in)
		if err != nil {
			return err
		}
		all = append(all, pages...)
	}
	return os.WriteFile(output, []byte(fakePDF(all...)), 0o600)
}

func (f *fakeCaps) Extract(ctx context.Context, input string, pages []int, output string) error {
	src, err := readPages(input)
	if err != nil {
		return err
	}
	var out []string
	for _, p := range pages {
		out = append(out, src[p-1])
	}
	return os.WriteFile(output, []byte(fakePDF(out...)), 0o600)
}

func (f *fakeCaps) Recompress(ctx context.Context, input, output string, quality domain.Quality) (domain.CompressionReport, error) {
	info, err := os.Stat(input)
	if err != nil {
		return domain.CompressionReport{}, err
	}
	size := int64(float64(info.Size()) * f.shrinkRatio)
	if err := os.WriteFile(output, bytes.Repeat([]byte("x"), int(size)), 0o600); err != nil {
		return domain.CompressionReport{}, err
	}
	return domain.CompressionReport{OriginalSize: info.Size(), NewSize: size, Engine: "fake"}, nil
}

func (f *fakeCaps) Rasterize(ctx context.Context, input, outDir string, dpi float64, format domain.ImageFormat) ([]string, error) {
	pages, err := readPages(input)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return nil, err
	}
	var out []string
	for i := range pages {
		p := filepath.Join(outDir, fmt.Sprintf("page_%03d.%s", i+1, format))
		if err := os.WriteFile(p, []byte("img"), 0o600); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeCaps) Pack(ctx context.Context, images []string, output string) error {
	labels := make([]string, len(images))
	for i, img := range images {
		labels[i] = filepath.Base(img)
	}
	return os.WriteFile(output, []byte(fakePDF(labels...)), 0o600)
}

func (f *fakeCaps) PageCount(ctx context.Context, input string) (int, error) {
	pages, err := readPages(input)
	return len(pages), err
}

func (f *fakeCaps) Archive(ctx context.Context, files []string, output string) error {
	return os.WriteFile(output, []byte(strings.Join(files, "\n")), 0o600)
}

type testEnv struct {
	ops     *Operations
	uploads *Uploads
	store   *session.Store
	scratch *scratch.Manager
	gate    *Gate
	caps    *fakeCaps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewNop()
	mgr, err := scratch.NewManager(t.TempDir(), log)
	require.NoError(t, err)

	store := session.NewStore(session.Limits{MaxDocuments: 3, MaxImages: 5})
	gate := NewGate()
	caps := &fakeCaps{shrinkRatio: 0.5}
	ops := NewOperations(store, mgr, gate, NewPool(2), caps.capabilities(), OperationsConfig{
		RasterDPI:        200,
		ArchiveThreshold: 10,
		OperationTimeout: time.Minute,
	}, log)

	return &testEnv{
		ops:     ops,
		uploads: NewUploads(store, mgr, gate, 1024*1024, log),
		store:   store,
		scratch: mgr,
		gate:    gate,
		caps:    caps,
	}
}

func (e *testEnv) upload(t *testing.T, conv domain.ConversationID, name string, content []byte) *domain.UploadReceipt {
	t.Helper()
	receipt, err := e.uploads.Accept(context.Background(), Upload{
		ConversationID: conv,
		FileName:       name,
		Size:           int64(len(content)),
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	})
	require.NoError(t, err)
	return receipt
}

func (e *testEnv) opDirs(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.scratch.Root())
	require.NoError(t, err)
	var dirs []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "op_") {
			dirs = append(dirs, entry.Name())
		}
	}
	return dirs
}

// delivered is a Delivery that snapshots result files while they still exist.
type delivered struct {
	mu      sync.Mutex
	results []*domain.OperationResult
	pages   [][]string
	copies  []string
	dir     string
}

func newDelivered(t *testing.T) *delivered {
	return &delivered{dir: t.TempDir()}
}

func (d *delivered) deliver(ctx context.Context, r *domain.OperationResult) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, r)
	for _, f := range r.Files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return err
		}
		cp := filepath.Join(d.dir, fmt.Sprintf("%d_%s", len(d.copies), f.Name))
		if err := os.WriteFile(cp, data, 0o600); err != nil {
			return err
		}
		d.copies = append(d.copies, cp)
		pages, _ := readPages(f.Path)
		d.pages = append(d.pages, pages)
	}
	return nil
}

func (d *delivered) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.results)
}

func request(conv domain.ConversationID, cmd domain.Command, args string) domain.OperationRequest {
	return domain.OperationRequest{ConversationID: conv, UserID: 42, Command: cmd, Args: args}
}
