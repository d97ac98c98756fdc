package tangler

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/my-mcp/azadi-tangle/internal/writer"
)

func newTestTangler(t *testing.T) (afero.Fs, *Tangler) {
	t.Helper()
	fs := afero.NewMemMapFs()
	w, err := writer.New(fs, "/work/gen", "/work/private")
	if err != nil {
		t.Fatalf("writer.New: %v", err)
	}
	tg, err := New(w, "<<", ">>", "@", []string{"#"}, nil)
	if err != nil {
		t.Fatalf("tangler.New: %v", err)
	}
	return fs, tg
}

func TestMultipleFilesWithCrossReferences(t *testing.T) {
	fs, tg := newTestTangler(t)

	file1 := strings.Join([]string{
		"# <<chunk_a>>=",
		"Content of chunk A",
		"# @",
		"# <<@file file_a.txt>>=",
		"File A content from file1",
		"# <<chunk_b2>>",
		"# @",
		"",
	}, "\n")

	file2 := strings.Join([]string{
		"# <<chunk_b>>=",
		"Content of chunk B before referencing chunk A:",
		"# <<chunk_a>>",
		"After referencing chunk A.",
		"# @",
		"# <<chunk_b2>>=",
		"Content of chunk B2",
		"# @",
		"",
	}, "\n")

	file3 := strings.Join([]string{
		"# <<chunk_c>>=",
		"Start of chunk C",
		"# <<chunk_a>>",
		"Middle of chunk C",
		"# <<chunk_b>>",
		"End of chunk C",
		"# @",
		"# <<@file file_c.txt>>=",
		"File C content from file3",
		"# @",
		"",
	}, "\n")

	tg.Read(file1, "file1.noweb")
	tg.Read(file2, "file2.noweb")
	tg.Read(file3, "file3.noweb")

	for _, name := range []string{"chunk_a", "chunk_b", "chunk_b2", "chunk_c"} {
		if !tg.Store().HasChunk(name) {
			t.Errorf("expected chunk %q to be present", name)
		}
	}

	fileChunks := tg.Store().FileChunks()
	if len(fileChunks) != 2 {
		t.Fatalf("FileChunks() = %v, want 2 entries", fileChunks)
	}
	want := map[string]bool{"@file file_a.txt": true, "@file file_c.txt": true}
	for _, name := range fileChunks {
		if !want[name] {
			t.Errorf("unexpected file chunk %q", name)
		}
	}

	if err := tg.WriteFiles(); err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}

	fileAContent, err := afero.ReadFile(fs, filepath.Join("/work/gen", "file_a.txt"))
	if err != nil {
		t.Fatalf("ReadFile file_a.txt: %v", err)
	}
	wantFileA := "File A content from file1\nContent of chunk B2\n"
	if string(fileAContent) != wantFileA {
		t.Errorf("file_a.txt = %q, want %q", fileAContent, wantFileA)
	}

	fileCContent, err := afero.ReadFile(fs, filepath.Join("/work/gen", "file_c.txt"))
	if err != nil {
		t.Fatalf("ReadFile file_c.txt: %v", err)
	}
	wantFileC := "File C content from file3\n"
	if string(fileCContent) != wantFileC {
		t.Errorf("file_c.txt = %q, want %q", fileCContent, wantFileC)
	}

	backupA, err := afero.ReadFile(fs, filepath.Join("/work/private", "__old__", "file_a.txt"))
	if err != nil {
		t.Fatalf("ReadFile backup file_a.txt: %v", err)
	}
	if string(backupA) != wantFileA {
		t.Errorf("backup file_a.txt = %q, want %q", backupA, wantFileA)
	}
}

func TestGetChunkStreamsExpandedBodyPlusNewline(t *testing.T) {
	_, tg := newTestTangler(t)
	tg.Read("# <<greeting>>=\nHello\n# @\n", "greeting.noweb")

	var buf strings.Builder
	if err := tg.GetChunk("greeting", &buf); err != nil {
		t.Fatalf("GetChunk: %v", err)
	}
	if got, want := buf.String(), "Hello\n\n"; got != want {
		t.Errorf("GetChunk output = %q, want %q", got, want)
	}
}

func TestResetClearsStore(t *testing.T) {
	_, tg := newTestTangler(t)
	tg.Read("# <<test>>=\nHello\n# @\n", "test.noweb")
	if !tg.Store().HasChunk("test") {
		t.Fatal("expected chunk before reset")
	}
	tg.Reset()
	if tg.Store().HasChunk("test") {
		t.Error("expected chunk to be gone after Reset")
	}
}
