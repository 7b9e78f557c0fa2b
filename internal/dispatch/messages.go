package dispatch

import (
	"fmt"
	"sort"
	"strings"

	"pdf-tools-bot/internal/domain"

	"github.com/dustin/go-humanize"
)

// About identifies the bot in the about message.
type About struct {
	Name        string
	Version     string
	Description string
}

// Limits are quoted in the help text.
type Limits struct {
	MaxFileSize   int64
	MaxMergeFiles int
	MaxImageFiles int
}

func startMessage(name string, about About) string {
	greeting := "👋 Welcome!"
	if name != "" {
		greeting = fmt.Sprintf("👋 Welcome %s!", name)
	}

	var b strings.Builder
	b.WriteString(greeting + "\n\n")
	fmt.Fprintf(&b, "I'm %s, your PDF assistant.\n\n", about.Name)
	b.WriteString("Quick start:\n")
	b.WriteString("1. Send me PDF files or images\n")
	b.WriteString("2. Use one of the commands below\n")
	b.WriteString("3. Get your result back in this chat\n\n")
	b.WriteString("Commands:\n")
	for _, cmd := range domain.AllCommands() {
		if cmd == domain.CommandStart || cmd == domain.CommandStats {
			continue
		}
		fmt.Fprintf(&b, "/%s - %s\n", cmd, cmd.Description())
	}
	b.WriteString("\n💡 Send files first, then the command.")
	return b.String()
}

func helpMessage(limits Limits) string {
	size := humanize.Bytes(uint64(limits.MaxFileSize))

	var b strings.Builder
	b.WriteString("📚 Help\n\n")

	b.WriteString("1️⃣ /merge\n")
	b.WriteString("Send 2 or more PDFs, then /merge. Files are combined in the order you sent them.\n")
	fmt.Fprintf(&b, "Up to %d files, %s each.\n\n", limits.MaxMergeFiles, size)

	b.WriteString("2️⃣ /split <pages>\n")
	b.WriteString("Send one PDF, then choose pages:\n")
	b.WriteString("/split 1-3 pages 1 to 3\n")
	b.WriteString("/split 1,3,5 pages 1, 3 and 5\n")
	b.WriteString("/split 5-end page 5 to the last page\n\n")

	b.WriteString("3️⃣ /compress [low|default|high]\n")
	b.WriteString("low gives the smallest file, high keeps the best quality.\n\n")

	b.WriteString("4️⃣ /toimage [png|jpg], /topng, /tojpg\n")
	b.WriteString("Every page becomes an image. Long documents come back as one ZIP file.\n\n")

	b.WriteString("5️⃣ /topdf\n")
	fmt.Fprintf(&b, "Send up to %d images, then /topdf. Each image becomes one page.\n\n", limits.MaxImageFiles)

	b.WriteString("/cancel drops the files you sent and stops a running operation.\n\n")
	fmt.Fprintf(&b, "Supported formats: %s", domain.SupportedFormats())
	return b.String()
}

func aboutMessage(about About) string {
	var b strings.Builder
	b.WriteString("ℹ️ About\n\n")
	fmt.Fprintf(&b, "Name: %s\n", about.Name)
	fmt.Fprintf(&b, "Version: %s\n", about.Version)
	fmt.Fprintf(&b, "Description: %s\n\n", about.Description)
	b.WriteString("🔒 Files are kept only while they are processed and are deleted afterwards.")
	return b.String()
}

func statsMessage(stats *domain.Statistics) string {
	var b strings.Builder
	b.WriteString("📊 Statistics\n\n")
	fmt.Fprintf(&b, "Users: %s\n", humanize.Comma(stats.TotalUsers))
	fmt.Fprintf(&b, "Operations: %s\n", humanize.Comma(stats.TotalOperations))
	if len(stats.ByCommand) == 0 {
		return b.String()
	}

	cmds := make([]domain.Command, 0, len(stats.ByCommand))
	for cmd := range stats.ByCommand {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool {
		if stats.ByCommand[cmds[i]] != stats.ByCommand[cmds[j]] {
			return stats.ByCommand[cmds[i]] > stats.ByCommand[cmds[j]]
		}
		return cmds[i] < cmds[j]
	})

	b.WriteString("\nBy operation:\n")
	for _, cmd := range cmds {
		fmt.Fprintf(&b, "/%s: %s\n", cmd, humanize.Comma(stats.ByCommand[cmd]))
	}
	return strings.TrimRight(b.String(), "\n")
}

// ReceiptMessage is the reply to an accepted upload.
func ReceiptMessage(r *domain.UploadReceipt) string {
	f := r.File
	next := "/merge, /split, /compress or /toimage"
	if f.Kind == domain.KindImage {
		next = "/topdf"
	}
	noun := f.Kind.Label()
	if r.Pending == 1 {
		noun = strings.TrimSuffix(noun, "s")
	}
	return fmt.Sprintf("📥 Received %s (%s). %d %s pending.\nSend more files or use %s.",
		f.OriginalName, humanize.Bytes(uint64(f.Size)), r.Pending, noun, next)
}
