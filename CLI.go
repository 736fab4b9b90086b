package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/manningwu07/textdata/text"
)

// EncoderCLI reads lines from in and prints their token ids. A line
// starting with ":d " decodes the ids that follow instead.
func EncoderCLI(in io.Reader, out io.Writer, enc text.TextEncoder) {
	reader := bufio.NewScanner(in)
	reader.Buffer(make([]byte, 0, 64*1024), 1<<20)
	fmt.Fprintf(out, "Encoder shell (%d entries). Type 'exit' to quit.\n", enc.Dictionary().Len())
	for {
		fmt.Fprint(out, "> ")
		if !reader.Scan() {
			fmt.Fprintln(out)
			return
		}
		line := strings.TrimSpace(reader.Text())
		switch {
		case line == "exit":
			return
		case line == "":
			continue
		case strings.HasPrefix(line, ":d "):
			var parts []string
			for _, tok := range strings.Fields(line[3:]) {
				parts = append(parts, enc.Decode(tok))
			}
			fmt.Fprintln(out, strings.Join(parts, " "))
		default:
			ids := text.EncodeIDs(enc, line)
			strs := make([]string, len(ids))
			oov := 0
			for i, id := range ids {
				strs[i] = strconv.Itoa(id)
				if id == text.OOV {
					oov++
				}
			}
			fmt.Fprintf(out, "%s  (%d tokens, %d oov)\n", strings.Join(strs, " "), len(ids), oov)
		}
	}
}
