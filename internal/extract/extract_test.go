package extract

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/deploymenttheory/frostbite-extract/internal/cas"
	"github.com/deploymenttheory/frostbite-extract/internal/compression"
	"github.com/deploymenttheory/frostbite-extract/internal/graph"
)

// storedChunk builds one chunk pipeline record using compression code
// 0x0070 (stored, uncompressed), so tests never need a real Oodle or
// LZ4 fixture: uncompField == len(payload), a final chunk, and
// compSize == uncompField per the stored-chunk invariant.
func storedChunk(payload []byte) []byte {
	var buf []byte
	u := make([]byte, 2)
	binary.BigEndian.PutUint16(u, uint16(len(payload)))
	buf = append(buf, u...)
	code := make([]byte, 2)
	binary.LittleEndian.PutUint16(code, compression.CodeStoredA)
	buf = append(buf, code...)
	sz := make([]byte, 4)
	binary.BigEndian.PutUint32(sz, uint32(len(payload)))
	buf = append(buf, sz...)
	return append(buf, payload...)
}

// fakeResolver satisfies cas.Resolver by mapping every identifier to a
// single file on disk, or by reporting no path at all for
// unresolvedID, standing in for a missing CAS package.
type fakeResolver struct {
	path          string
	unresolvedID  cas.Identifier
	hasUnresolved bool
}

func (f fakeResolver) ResolvePath(id cas.Identifier) (string, bool) {
	if f.hasUnresolved && id == f.unresolvedID {
		return "", false
	}
	return f.path, true
}

// fakeSource is a fixed graph.PartSource for driver tests, bypassing a
// full layout/graph build.
type fakeSource struct{ parts []graph.Part }

func (f fakeSource) Walk() []graph.Part { return f.parts }

// recordingSink captures every Write call under a mutex so the test
// can assert against it after Run's worker pool has drained.
type recordingSink struct {
	mu      sync.Mutex
	written map[string][]byte
	failOn  string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{written: map[string][]byte{}}
}

func (s *recordingSink) Write(_ graph.PartKind, identity string, _ []byte, data []byte) error {
	if identity == s.failOn {
		return os.ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written[identity] = append([]byte(nil), data...)
	return nil
}

func writeCASFile(t *testing.T, dir string, chunks ...[]byte) (path string, offset uint64) {
	t.Helper()
	var all []byte
	for _, c := range chunks {
		all = append(all, c...)
	}
	path = filepath.Join(dir, "cas_01.cas")
	if err := os.WriteFile(path, all, 0o644); err != nil {
		t.Fatal(err)
	}
	return path, 0
}

func TestDriverRunExtractsEveryPart(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeCASFile(t, dir, storedChunk([]byte("hello world")))

	resolver := fakeResolver{path: path}
	reader := cas.NewReader(resolver, compression.NewLZ4Decompressor(), cas.DefaultMaxOpenHandles)
	defer reader.Close()

	sink := newRecordingSink()
	uncompressed := uint64(11)
	driver := &Driver{
		Graph: fakeSource{parts: []graph.Part{
			{Kind: graph.PartEBX, Identity: "characters/hero", CASOffset: 0, CompressedSize: 8 + 11, UncompressedSize: uncompressed, HasUncompressedSize: true},
		}},
		CAS:     reader,
		Sink:    sink,
		Workers: 2,
	}

	summary := driver.Run(context.Background())
	if summary.Extracted != 1 || summary.Failed != 0 || summary.SkippedUnavailable != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if string(sink.written["characters/hero"]) != "hello world" {
		t.Fatalf("unexpected written bytes: %q", sink.written["characters/hero"])
	}
}

func TestDriverRunSkipsUnavailableBundle(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeCASFile(t, dir, storedChunk([]byte("x")))

	unresolved := cas.Identifier(99)
	resolver := fakeResolver{path: path, unresolvedID: unresolved, hasUnresolved: true}
	reader := cas.NewReader(resolver, compression.NewLZ4Decompressor(), cas.DefaultMaxOpenHandles)
	defer reader.Close()

	sink := newRecordingSink()
	driver := &Driver{
		Graph: fakeSource{parts: []graph.Part{
			{Kind: graph.PartChunk, Identity: "aabb", CASID: unresolved, CASOffset: 0, CompressedSize: 1},
		}},
		CAS:     reader,
		Sink:    sink,
		Workers: 1,
	}

	summary := driver.Run(context.Background())
	if summary.SkippedUnavailable != 1 || summary.Extracted != 0 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestDriverRunRecordsSinkFailureAsPartError(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeCASFile(t, dir, storedChunk([]byte("y")))

	resolver := fakeResolver{path: path}
	reader := cas.NewReader(resolver, compression.NewLZ4Decompressor(), cas.DefaultMaxOpenHandles)
	defer reader.Close()

	sink := newRecordingSink()
	sink.failOn = "broken"
	uncompressed := uint64(1)
	driver := &Driver{
		Graph: fakeSource{parts: []graph.Part{
			{Kind: graph.PartEBX, Identity: "broken", CASOffset: 0, CompressedSize: 8 + 1, UncompressedSize: uncompressed, HasUncompressedSize: true},
		}},
		CAS:     reader,
		Sink:    sink,
		Workers: 1,
	}

	summary := driver.Run(context.Background())
	if summary.Failed != 1 || len(summary.Errors) != 1 || summary.Errors[0].Identity != "broken" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

// TestDriverRunIsOrderIndependentAcrossWorkerCounts exercises testable
// property 5: since the graph is read-only during extraction, running
// the same part list through a single-worker pool and an N-worker
// pool must write byte-identical output, regardless of which order
// the pool happens to complete them in.
func TestDriverRunIsOrderIndependentAcrossWorkerCounts(t *testing.T) {
	dir := t.TempDir()
	var parts []graph.Part
	var chunks [][]byte
	offset := uint64(0)
	for i := 0; i < 20; i++ {
		payload := []byte(filepath.Base(dir) + "-" + string(rune('a'+i)))
		chunks = append(chunks, storedChunk(payload))
		parts = append(parts, graph.Part{
			Kind: graph.PartEBX, Identity: "part/" + string(rune('a'+i)),
			CASOffset: offset, CompressedSize: uint64(len(storedChunk(payload))),
			UncompressedSize: uint64(len(payload)), HasUncompressedSize: true,
		})
		offset += uint64(len(storedChunk(payload)))
	}
	path, _ := writeCASFile(t, dir, chunks...)
	resolver := fakeResolver{path: path}

	run := func(workers int) map[string]string {
		reader := cas.NewReader(resolver, compression.NewLZ4Decompressor(), cas.DefaultMaxOpenHandles)
		defer reader.Close()
		sink := newRecordingSink()
		driver := &Driver{Graph: fakeSource{parts: parts}, CAS: reader, Sink: sink, Workers: workers}
		summary := driver.Run(context.Background())
		if summary.Failed != 0 || summary.Extracted != len(parts) {
			t.Fatalf("worker count %d: unexpected summary %+v", workers, summary)
		}
		out := make(map[string]string, len(sink.written))
		for k, v := range sink.written {
			out[k] = string(v)
		}
		return out
	}

	sequential := run(1)
	parallel := run(8)

	if len(sequential) != len(parallel) {
		t.Fatalf("output count differs: sequential=%d parallel=%d", len(sequential), len(parallel))
	}
	for identity, want := range sequential {
		if got := parallel[identity]; got != want {
			t.Fatalf("part %q: sequential=%q parallel=%q", identity, want, got)
		}
	}
}

func TestDriverRunStopsSubmittingAfterCancellation(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeCASFile(t, dir, storedChunk([]byte("z")))

	resolver := fakeResolver{path: path}
	reader := cas.NewReader(resolver, compression.NewLZ4Decompressor(), cas.DefaultMaxOpenHandles)
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := newRecordingSink()
	uncompressed := uint64(1)
	driver := &Driver{
		Graph: fakeSource{parts: []graph.Part{
			{Kind: graph.PartEBX, Identity: "never-submitted", CASOffset: 0, CompressedSize: 1, UncompressedSize: uncompressed, HasUncompressedSize: true},
		}},
		CAS:     reader,
		Sink:    sink,
		Workers: 1,
	}

	summary := driver.Run(ctx)
	if summary.Extracted != 0 || summary.Failed != 0 || summary.SkippedUnavailable != 0 {
		t.Fatalf("expected no parts submitted once ctx is already done, got %+v", summary)
	}
}
