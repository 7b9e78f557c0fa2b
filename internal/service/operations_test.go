package service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"pdf-tools-bot/internal/domain"
	apperrors "pdf-tools-bot/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_TwoUploads(t *testing.T) {
	env := newTestEnv(t)
	out := newDelivered(t)

	env.upload(t, "chat", "a.pdf", []byte(fakePDF("a1", "a2")))
	env.upload(t, "chat", "b.pdf", []byte(fakePDF("b1", "b2", "b3")))

	err := env.ops.Merge(context.Background(), request("chat", domain.CommandMerge, ""), out.deliver)
	require.NoError(t, err)

	require.Len(t, out.pages, 1)
	assert.Equal(t, []string{"a1", "a2", "b1", "b2", "b3"}, out.pages[0])
	assert.Contains(t, out.results[0].Summary, "into 5 pages")
	assert.Empty(t, env.store.Files("chat"))
	assert.Empty(t, env.opDirs(t))
}

func TestMerge_TooFewDocuments(t *testing.T) {
	env := newTestEnv(t)
	out := newDelivered(t)

	env.upload(t, "chat", "a.pdf", []byte(fakePDF("a1")))

	err := env.ops.Merge(context.Background(), request("chat", domain.CommandMerge, ""), out.deliver)
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), "got %v", err)
	assert.Contains(t, err.Error(), "you have 1")

	assert.Zero(t, env.caps.combineCalls.Load())
	assert.Zero(t, out.count())
	assert.Len(t, env.store.Files("chat"), 1, "validation failure keeps pending files")
	assert.Empty(t, env.opDirs(t))
}

func TestMerge_CapabilityFailureCleansUp(t *testing.T) {
	env := newTestEnv(t)
	env.caps.combineErr = errors.New("library crashed")
	out := newDelivered(t)

	env.upload(t, "chat", "a.pdf", []byte(fakePDF("a1")))
	env.upload(t, "chat", "b.pdf", []byte(fakePDF("b1")))

	err := env.ops.Merge(context.Background(), request("chat", domain.CommandMerge, ""), out.deliver)
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeCapability), "got %v", err)
	assert.NotContains(t, apperrors.UserMessage(err), "library crashed")

	assert.Zero(t, out.count())
	assert.Empty(t, env.store.Files("chat"), "processing failure clears pending files")
	assert.Empty(t, env.opDirs(t))
}

func TestSplit_NoUpload(t *testing.T) {
	env := newTestEnv(t)
	out := newDelivered(t)

	err := env.ops.Split(context.Background(), request("chat", domain.CommandSplit, "1-3"), out.deliver)
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), "got %v", err)
	assert.Contains(t, err.Error(), "No document uploaded")

	entries, readErr := os.ReadDir(env.scratch.Root())
	require.NoError(t, readErr)
	assert.Empty(t, entries, "no scratch directory may be created")
}

func TestSplit_PageSpec(t *testing.T) {
	env := newTestEnv(t)
	out := newDelivered(t)

	env.upload(t, "chat", "doc.pdf", []byte(numberedPDF(10)))

	err := env.ops.Split(context.Background(), request("chat", domain.CommandSplit, "1-3,5,7-end"), out.deliver)
	require.NoError(t, err)

	require.Len(t, out.pages, 1)
	assert.Equal(t, []string{"1", "2", "3", "5", "7", "8", "9", "10"}, out.pages[0])
	assert.Empty(t, env.opDirs(t))
}

func TestSplit_MissingSpecShowsPageCount(t *testing.T) {
	env := newTestEnv(t)
	out := newDelivered(t)

	env.upload(t, "chat", "doc.pdf", []byte(numberedPDF(10)))

	err := env.ops.Split(context.Background(), request("chat", domain.CommandSplit, ""), out.deliver)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
	assert.Contains(t, appErr.Details, "10 pages")
	assert.Len(t, env.store.Files("chat"), 1)
}

func TestSplit_OutOfRange(t *testing.T) {
	env := newTestEnv(t)
	out := newDelivered(t)

	env.upload(t, "chat", "doc.pdf", []byte(numberedPDF(10)))

	err := env.ops.Split(context.Background(), request("chat", domain.CommandSplit, "12"), out.deliver)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Message, "out of range")
	assert.Contains(t, appErr.Details, "1-10")
}

func TestSplit_RejectsTwoDocuments(t *testing.T) {
	env := newTestEnv(t)
	out := newDelivered(t)

	env.upload(t, "chat", "a.pdf", []byte(numberedPDF(2)))
	env.upload(t, "chat", "b.pdf", []byte(numberedPDF(2)))

	err := env.ops.Split(context.Background(), request("chat", domain.CommandSplit, "1"), out.deliver)
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "you have 2")
}

func TestSplit_EncryptedDocument(t *testing.T) {
	env := newTestEnv(t)
	out := newDelivered(t)

	env.upload(t, "chat", "locked.pdf", []byte("%PDF-1.7\nencrypted\n"))

	err := env.ops.Split(context.Background(), request("chat", domain.CommandSplit, "1"), out.deliver)
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnprocessable), "got %v", err)
	assert.Contains(t, apperrors.UserMessage(err), "password")
	assert.Empty(t, env.store.Files("chat"), "unreadable input is discarded")
}

func TestSplit_CorruptDocumentIsDiscarded(t *testing.T) {
	env := newTestEnv(t)
	out := newDelivered(t)

	env.upload(t, "chat", "broken.pdf", []byte("%PDF-1.4\ndamaged\n"))

	err := env.ops.Split(context.Background(), request("chat", domain.CommandSplit, "1-2"), out.deliver)
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnprocessable), "got %v", err)
	assert.Empty(t, env.store.Files("chat"))
	assert.Empty(t, env.opDirs(t))

	// the conversation accepts a fresh upload afterwards
	env.upload(t, "chat", "good.pdf", []byte(numberedPDF(2)))
	require.NoError(t, env.ops.Split(context.Background(), request("chat", domain.CommandSplit, "2"), out.deliver))
}

func TestToPDF_ThenSplitAllPages(t *testing.T) {
	env := newTestEnv(t)
	packed := newDelivered(t)
	img := pngBytes(t)

	for _, name := range []string{"one.png", "two.png", "three.png"} {
		env.upload(t, "chat", name, img)
	}

	require.NoError(t, env.ops.ToPDF(context.Background(), request("chat", domain.CommandToPDF, ""), packed.deliver))
	require.Len(t, packed.copies, 1)
	require.Len(t, packed.pages[0], 3)

	data, err := os.ReadFile(packed.copies[0])
	require.NoError(t, err)
	env.upload(t, "chat", "images.pdf", data)

	split := newDelivered(t)
	require.NoError(t, env.ops.Split(context.Background(), request("chat", domain.CommandSplit, "1-end"), split.deliver))
	assert.Equal(t, packed.pages[0], split.pages[0])
}

func TestToPDF_NoImages(t *testing.T) {
	env := newTestEnv(t)
	out := newDelivered(t)

	env.upload(t, "chat", "a.pdf", []byte(fakePDF("a")))

	err := env.ops.ToPDF(context.Background(), request("chat", domain.CommandToPDF, ""), out.deliver)
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "No images uploaded")
}

func TestCompress_Smaller(t *testing.T) {
	env := newTestEnv(t)
	out := newDelivered(t)

	env.upload(t, "chat", "big.pdf", []byte(numberedPDF(50)))

	require.NoError(t, env.ops.Compress(context.Background(), request("chat", domain.CommandCompress, "high"), out.deliver))
	require.Len(t, out.results, 1)
	assert.Contains(t, out.results[0].Summary, "50.0% smaller")
	assert.Equal(t, "compressed_big.pdf", out.results[0].Files[0].Name)
}

func TestCompress_NotSmallerSendsOriginal(t *testing.T) {
	env := newTestEnv(t)
	env.caps.shrinkRatio = 1.1
	out := newDelivered(t)

	content := []byte(numberedPDF(20))
	env.upload(t, "chat", "tight.pdf", content)

	require.NoError(t, env.ops.Compress(context.Background(), request("chat", domain.CommandCompress, ""), out.deliver))
	assert.Contains(t, out.results[0].Summary, "already well optimized")
	assert.Contains(t, out.results[0].Summary, "-10.0%")

	data, err := os.ReadFile(out.copies[0])
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestCompress_InvalidLevel(t *testing.T) {
	env := newTestEnv(t)
	out := newDelivered(t)

	env.upload(t, "chat", "doc.pdf", []byte(numberedPDF(2)))

	err := env.ops.Compress(context.Background(), request("chat", domain.CommandCompress, "ultra"), out.deliver)
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Len(t, env.store.Files("chat"), 1)
}

func TestToImage_IndividualImages(t *testing.T) {
	env := newTestEnv(t)
	out := newDelivered(t)

	env.upload(t, "chat", "doc.pdf", []byte(numberedPDF(3)))

	require.NoError(t, env.ops.ToJPG(context.Background(), request("chat", domain.CommandToJPG, ""), out.deliver))
	files := out.results[0].Files
	require.Len(t, files, 3)
	assert.Equal(t, domain.ResultImage, files[0].Kind)
	assert.Equal(t, "page_001.jpg", files[0].Name)
	assert.Equal(t, "Page 3 of 3", files[2].Caption)
}

func TestToImage_ArchiveAboveThreshold(t *testing.T) {
	env := newTestEnv(t)
	out := newDelivered(t)

	env.upload(t, "chat", "doc.pdf", []byte(numberedPDF(12)))

	require.NoError(t, env.ops.ToImage(context.Background(), request("chat", domain.CommandToImage, "png"), out.deliver))
	files := out.results[0].Files
	require.Len(t, files, 1)
	assert.Equal(t, domain.ResultArchive, files[0].Kind)
	assert.Equal(t, "pdf_images.zip", files[0].Name)
	assert.Empty(t, env.opDirs(t))
}

func TestToImage_InvalidFormat(t *testing.T) {
	env := newTestEnv(t)
	out := newDelivered(t)

	env.upload(t, "chat", "doc.pdf", []byte(numberedPDF(1)))

	err := env.ops.ToImage(context.Background(), request("chat", domain.CommandToImage, "gif"), out.deliver)
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestOperations_BusyAndCancel(t *testing.T) {
	env := newTestEnv(t)
	env.caps.combineGate = make(chan struct{})
	env.caps.combineActive = make(chan struct{})
	out := newDelivered(t)

	env.upload(t, "chat", "a.pdf", []byte(fakePDF("a")))
	env.upload(t, "chat", "b.pdf", []byte(fakePDF("b")))

	done := make(chan error, 1)
	go func() {
		done <- env.ops.Merge(context.Background(), request("chat", domain.CommandMerge, ""), out.deliver)
	}()
	<-env.caps.combineActive

	err := env.ops.Split(context.Background(), request("chat", domain.CommandSplit, "1"), out.deliver)
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeBusy), "got %v", err)

	// other conversations are unaffected
	other := newDelivered(t)
	env.upload(t, "other", "c.pdf", []byte(numberedPDF(2)))
	require.NoError(t, env.ops.Split(context.Background(), request("other", domain.CommandSplit, "2"), other.deliver))

	cancelled := newDelivered(t)
	require.NoError(t, env.ops.Cancel(context.Background(), request("chat", domain.CommandCancel, ""), cancelled.deliver))
	assert.Contains(t, cancelled.results[0].Summary, "running operation")

	close(env.caps.combineGate)
	select {
	case err := <-done:
		require.True(t, apperrors.IsType(err, apperrors.ErrorTypeCancelled), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("merge did not finish")
	}

	assert.Zero(t, out.count(), "cancelled result must not be delivered")
	assert.Empty(t, env.opDirs(t))
	assert.False(t, env.gate.Busy("chat"))
}

func TestOperations_AdmissionSignal(t *testing.T) {
	env := newTestEnv(t)
	env.caps.combineGate = make(chan struct{})
	env.caps.combineActive = make(chan struct{})
	out := newDelivered(t)

	env.upload(t, "chat", "a.pdf", []byte(fakePDF("a")))
	env.upload(t, "chat", "b.pdf", []byte(fakePDF("b")))

	admitted := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		ctx := WithAdmission(context.Background(), func() { close(admitted) })
		done <- env.ops.Merge(ctx, request("chat", domain.CommandMerge, ""), out.deliver)
	}()

	select {
	case <-admitted:
	case <-time.After(2 * time.Second):
		t.Fatal("admission not signalled for a running merge")
	}
	<-env.caps.combineActive

	refused := 0
	ctx := WithAdmission(context.Background(), func() { refused++ })
	err := env.ops.Split(ctx, request("chat", domain.CommandSplit, "1"), out.deliver)
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeBusy), "got %v", err)
	assert.Equal(t, 1, refused)

	close(env.caps.combineGate)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("merge did not finish")
	}
	assert.Equal(t, 1, out.count())
}

func TestCancel_ClearsPendingFiles(t *testing.T) {
	env := newTestEnv(t)
	out := newDelivered(t)

	env.upload(t, "chat", "a.pdf", []byte(fakePDF("a")))
	env.upload(t, "chat", "b.pdf", []byte(fakePDF("b")))
	paths := []string{}
	for _, f := range env.store.Files("chat") {
		paths = append(paths, f.Path)
	}

	require.NoError(t, env.ops.Cancel(context.Background(), request("chat", domain.CommandCancel, ""), out.deliver))
	assert.Contains(t, out.results[0].Summary, "Removed 2 pending files")
	assert.Empty(t, env.store.Files("chat"))
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err))
	}

	again := newDelivered(t)
	require.NoError(t, env.ops.Cancel(context.Background(), request("chat", domain.CommandCancel, ""), again.deliver))
	assert.Equal(t, "Nothing to cancel.", again.results[0].Summary)
}
