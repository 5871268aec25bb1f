// Package feedback collects anonymous post-conversation ratings. The codec
// here packs the rating-button payload into Telegram callback data, which is
// capped at 64 bytes, and unpacks it exactly; anything it did not produce
// decodes to ErrBadPayload and is treated as an unsupported action upstream.
package feedback

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"helpline/backend/internal/models"
)

// ErrBadPayload marks callback data that is malformed or was produced by
// something other than this codec. Never a crash; the bot answers with a
// generic "unsupported action".
var ErrBadPayload = errors.New("not a feedback payload")

// payloadTag is the first byte of every encoded payload, identifying it as a
// rating action before any field is read.
const payloadTag = 'F'

// Payload is everything a feedback button carries: the operator identity
// pair, when the conversation ended, and the optional mood choice.
type Payload struct {
	OperatorID      int64
	OperatorLocalID uint
	EndedAt         int64
	// Mood is one of the models.Mood* constants, or empty when the button
	// offers no mood (the skip row encodes models.MoodSkipped explicitly).
	Mood string
}

var moodToCode = map[string]byte{
	"":                 0,
	models.MoodBetter:  1,
	models.MoodSame:    2,
	models.MoodWorse:   3,
	models.MoodSkipped: 4,
}

var codeToMood = map[byte]string{
	0: "",
	1: models.MoodBetter,
	2: models.MoodSame,
	3: models.MoodWorse,
	4: models.MoodSkipped,
}

// Encode packs the payload into URL-safe base64. The varint layout stays well
// under Telegram's 64-byte callback-data cap for any real Telegram id.
func Encode(p Payload) (string, error) {
	code, ok := moodToCode[p.Mood]
	if !ok {
		return "", fmt.Errorf("unknown mood %q", p.Mood)
	}
	buf := make([]byte, 0, 24)
	buf = append(buf, payloadTag)
	buf = binary.AppendVarint(buf, p.OperatorID)
	buf = binary.AppendUvarint(buf, uint64(p.OperatorLocalID))
	buf = binary.AppendVarint(buf, p.EndedAt)
	buf = append(buf, code)

	encoded := base64.RawURLEncoding.EncodeToString(buf)
	if len(encoded) > 64 {
		return "", fmt.Errorf("encoded payload is %d bytes, over the callback limit", len(encoded))
	}
	return encoded, nil
}

// Decode is the exact inverse of Encode. Every malformed input, including
// valid base64 that this codec did not produce, yields ErrBadPayload.
func Decode(data string) (Payload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil || len(raw) < 2 || raw[0] != payloadTag {
		return Payload{}, ErrBadPayload
	}

	r := bytes.NewReader(raw[1:])
	operatorID, err := binary.ReadVarint(r)
	if err != nil {
		return Payload{}, ErrBadPayload
	}
	localID, err := binary.ReadUvarint(r)
	if err != nil {
		return Payload{}, ErrBadPayload
	}
	endedAt, err := binary.ReadVarint(r)
	if err != nil {
		return Payload{}, ErrBadPayload
	}
	code, err := r.ReadByte()
	if err != nil || r.Len() != 0 {
		return Payload{}, ErrBadPayload
	}
	mood, ok := codeToMood[code]
	if !ok {
		return Payload{}, ErrBadPayload
	}

	return Payload{
		OperatorID:      operatorID,
		OperatorLocalID: uint(localID),
		EndedAt:         endedAt,
		Mood:            mood,
	}, nil
}
