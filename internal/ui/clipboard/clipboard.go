package clipboard

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
)

var (
	writeNative           = clipboard.WriteAll
	osc52Out    io.Writer = os.Stderr
)

// Write copies text to the system clipboard. The native clipboard (pbcopy,
// xclip, wl-copy) is tried first; over SSH or inside tmux the OSC 52
// escape sequence is written to the terminal instead.
func Write(text string) error {
	if err := writeNative(text); err == nil {
		return nil
	}
	return writeOSC52(text)
}

func writeOSC52(text string) error {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	_, err := fmt.Fprintf(osc52Out, "\x1b]52;c;%s\x07", encoded)
	return err
}
