package qpproj

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// A data.qpdata file is an ASCII version header, an embedded JSON metadata
// block, then a Java-serialized object hierarchy this tool treats as opaque.

var (
	dataVersionPrefix = []byte("Data file version")
	metadataStart     = []byte(`{"dataVersion"`)
	// The serialized hierarchy begins with the TC_OBJECT/TC_CLASSDESC pair
	// "sr" right after the metadata's closing brace.
	metadataEnd = []byte("}sr")
)

type DataFile struct {
	Version  string
	Metadata *DataMetadata
}

type DataMetadata struct {
	DataVersion   int            `json:"dataVersion"`
	QuPathVersion string         `json:"qupathVersion"`
	Server        ServerMetadata `json:"server"`
}

type ServerMetadata struct {
	Metadata ImageMetadata `json:"metadata"`
}

type ImageMetadata struct {
	Name          string  `json:"name"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Magnification float64 `json:"magnification"`
	PixelType     string  `json:"pixelType"`
	ChannelType   string  `json:"channelType"`
}

// ReadDataFile scans a data.qpdata container for its version header and
// embedded metadata JSON. A malformed metadata block yields whatever parsed
// plus an error; callers treat that as a per-entry condition, never fatal.
func ReadDataFile(path string) (*DataFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	return ParseDataFile(data)
}

func ParseDataFile(data []byte) (*DataFile, error) {
	df := &DataFile{}

	if bytes.HasPrefix(data, dataVersionPrefix) {
		// Two framing bytes sit between the header text and the version
		// string; the next Java string marker (0x74) ends it.
		start := len(dataVersionPrefix) + 2
		if start < len(data) {
			rest := data[start:]
			end := bytes.IndexByte(rest, 0x74)
			if end < 0 {
				end = len(rest)
			}
			df.Version = strings.TrimSpace(string(printableOnly(rest[:end])))
		}
	}

	js := bytes.Index(data, metadataStart)
	if js < 0 {
		if df.Version == "" {
			return df, fmt.Errorf("no version header or metadata block found")
		}
		return df, nil
	}
	je := bytes.Index(data[js:], metadataEnd)
	if je < 0 {
		return df, fmt.Errorf("metadata block is not terminated")
	}
	blob := data[js : js+je+1]

	var md DataMetadata
	if err := json.Unmarshal(blob, &md); err != nil {
		return df, fmt.Errorf("parse metadata json: %w", err)
	}
	df.Metadata = &md
	return df, nil
}

func printableOnly(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c >= 0x20 && c <= 0x7e {
			out = append(out, c)
		}
	}
	return out
}
