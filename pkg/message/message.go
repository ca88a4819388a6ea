/*
Data shared by the recorder, the client and the server
- TermSession : one recorded terminal session in its canonical two-part form
- UploadRequest : the form posted to the server
*/
package message

import (
	"bytes"
	"fmt"
)

// Header line the ttyrecord converter puts in front of the payload.
const ConvertedHeader = "Converted from ttyrecord\n"

// Backend names, recorded alongside each upload.
const (
	BScript = "script"
	BTtyrec = "ttyrec"
)

type TermSession struct {
	// Bytes as the terminal received them. The first line is a header
	// that is not covered by the timing list.
	Script []byte

	// One "<seconds> <bytes>" line per chunk of Script.
	Timing string

	Cols uint
	Rows uint

	// Which backend produced the session.
	Backend string
}

// Body is Script without its header line.
func (s *TermSession) Body() []byte {
	i := bytes.IndexByte(s.Script, '\n')
	if i < 0 {
		return nil
	}
	return s.Script[i+1:]
}

// Validate checks the timing list parses and does not claim more bytes
// than the body holds.
func (s *TermSession) Validate() error {
	entries, err := ParseTiming(s.Timing)
	if err != nil {
		return err
	}
	total := TotalBytes(entries)
	if body := len(s.Body()); total > body {
		return fmt.Errorf("timing covers %d bytes but script body has %d", total, body)
	}
	return nil
}

// UploadRequest is the form body of POST /scripts. Script bytes travel in a
// string field; url encoding keeps them intact.
type UploadRequest struct {
	ScriptFile string `schema:"scriptfile"`
	TimingFile string `schema:"timingfile"`
	Cols       uint   `schema:"cols"`
	Lines      uint   `schema:"lines"`
	Secret     string `schema:"secret"`
}

func NewUploadRequest(s *TermSession, secret string) UploadRequest {
	return UploadRequest{
		ScriptFile: string(s.Script),
		TimingFile: s.Timing,
		Cols:       s.Cols,
		Lines:      s.Rows,
		Secret:     secret,
	}
}

// DeleteRequest is the form body of DELETE /<session path>.
type DeleteRequest struct {
	Secret string `schema:"secret"`
}
