package kissframe

import (
	"bytes"
	"testing"
)

func TestDeframerSingleFrame(t *testing.T) {
	d := NewDeframer()
	stream := []byte{fend, 0x00, 'h', 'i', fend}
	frames := d.Push(stream)
	if len(frames) != 1 || !bytes.Equal(frames[0], []byte("hi")) {
		t.Fatalf("frames = %v, want one frame %q", frames, "hi")
	}
}

func TestDeframerDropsControlFrames(t *testing.T) {
	d := NewDeframer()
	// low nibble 1 marks a non-data KISS command frame; must be dropped.
	stream := []byte{fend, 0x01, 'x', fend}
	if frames := d.Push(stream); len(frames) != 0 {
		t.Fatalf("expected control frame to be dropped, got %v", frames)
	}
}

func TestDeframerUnstuffing(t *testing.T) {
	d := NewDeframer()
	stream := []byte{fend, 0x00, fesc, tfend, fesc, tfesc, fend}
	frames := d.Push(stream)
	if len(frames) != 1 || !bytes.Equal(frames[0], []byte{fend, fesc}) {
		t.Fatalf("frames = %v, want unstuffed [FEND FESC]", frames)
	}
}

func TestDeframerAcrossPushes(t *testing.T) {
	d := NewDeframer()
	d.Push([]byte{fend, 0x00, 'a', 'b'})
	frames := d.Push([]byte{'c', fend})
	if len(frames) != 1 || !bytes.Equal(frames[0], []byte("abc")) {
		t.Fatalf("frames = %v, want %q split across pushes", frames, "abc")
	}
}

func TestDeframerMultipleFramesOnePush(t *testing.T) {
	d := NewDeframer()
	stream := []byte{fend, 0x00, '1', fend, 0x00, '2', fend}
	frames := d.Push(stream)
	if len(frames) != 2 || !bytes.Equal(frames[0], []byte("1")) || !bytes.Equal(frames[1], []byte("2")) {
		t.Fatalf("frames = %v, want [1 2]", frames)
	}
}
