package emcfand

import (
	"bufio"
	"bytes"
)

// ReadEvent reads one SSE payload from the monitor stream, i.e. everything
// up to the blank line that terminates an event.
func ReadEvent(r *bufio.Reader) ([]byte, error) {
	var payload []byte

	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			return payload, err
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if len(payload) == 0 {
				continue // leading keep-alive, await a real event
			}
			return payload, nil
		}

		payload = append(payload, line...)
	}
}
