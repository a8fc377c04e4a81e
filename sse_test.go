package emcfand

import (
	"bufio"
	"io"
	"strings"
	"testing"
)

func TestReadEvent(t *testing.T) {
	stream := bufio.NewReader(strings.NewReader("{\"rpm\":1200}\n\n{\"rpm\":1250}\n\n"))

	payload, err := ReadEvent(stream)
	if err != nil || string(payload) != `{"rpm":1200}` {
		t.Errorf("ReadEvent = (%q, %v)", payload, err)
	}

	payload, err = ReadEvent(stream)
	if err != nil || string(payload) != `{"rpm":1250}` {
		t.Errorf("ReadEvent = (%q, %v)", payload, err)
	}

	if _, err = ReadEvent(stream); err != io.EOF {
		t.Errorf("ReadEvent at end = %v, want io.EOF", err)
	}
}

func TestReadEventSkipsKeepAlives(t *testing.T) {
	stream := bufio.NewReader(strings.NewReader("\n\n\n{\"rpm\":900}\n\n"))

	payload, err := ReadEvent(stream)
	if err != nil || string(payload) != `{"rpm":900}` {
		t.Errorf("ReadEvent = (%q, %v)", payload, err)
	}
}

func TestReadEventCRLF(t *testing.T) {
	stream := bufio.NewReader(strings.NewReader("{\"rpm\":900}\r\n\r\n"))

	payload, err := ReadEvent(stream)
	if err != nil || string(payload) != `{"rpm":900}` {
		t.Errorf("ReadEvent = (%q, %v)", payload, err)
	}
}
