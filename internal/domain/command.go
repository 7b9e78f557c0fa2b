package domain

// Command is the first token of an inbound chat message, lower-cased and
// stripped of the leading slash and any @BotName suffix.
type Command string

const (
	CommandStart    Command = "start"
	CommandHelp     Command = "help"
	CommandAbout    Command = "about"
	CommandCancel   Command = "cancel"
	CommandStats    Command = "stats"
	CommandMerge    Command = "merge"
	CommandSplit    Command = "split"
	CommandCompress Command = "compress"
	CommandToImage  Command = "toimage"
	CommandToPNG    Command = "topng"
	CommandToJPG    Command = "tojpg"
	CommandToPDF    Command = "topdf"
)

// AllCommands returns every command the bot understands, in the order they
// are advertised to users.
func AllCommands() []Command {
	return []Command{
		CommandStart,
		CommandHelp,
		CommandMerge,
		CommandSplit,
		CommandCompress,
		CommandToImage,
		CommandToPNG,
		CommandToJPG,
		CommandToPDF,
		CommandCancel,
		CommandAbout,
		CommandStats,
	}
}

// IsOperation reports whether the command runs a document operation (as
// opposed to an informational or control command).
func (c Command) IsOperation() bool {
	switch c {
	case CommandMerge, CommandSplit, CommandCompress, CommandToImage,
		CommandToPNG, CommandToJPG, CommandToPDF:
		return true
	}
	return false
}

// Description is the one-line text shown in the client's command menu.
func (c Command) Description() string {
	switch c {
	case CommandStart:
		return "Start the bot"
	case CommandHelp:
		return "Show usage guide"
	case CommandMerge:
		return "Merge uploaded PDFs"
	case CommandSplit:
		return "Extract pages, e.g. /split 1-3,5"
	case CommandCompress:
		return "Compress a PDF (low, default, high)"
	case CommandToImage:
		return "Convert PDF pages to images"
	case CommandToPNG:
		return "Convert PDF pages to PNG"
	case CommandToJPG:
		return "Convert PDF pages to JPEG"
	case CommandToPDF:
		return "Combine uploaded images into a PDF"
	case CommandCancel:
		return "Cancel and clear uploaded files"
	case CommandAbout:
		return "About this bot"
	case CommandStats:
		return "Usage statistics (admins only)"
	}
	return ""
}
