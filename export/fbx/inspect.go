package fbx

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Summary describes an FBX ASCII document written by Encode.
type Summary struct {
	Version   int
	Title     string
	Animation string
	TimeMode  int
	Joints    []string
	Curves    int
	Keys      int
	StopKTime int64
	HasFloor  bool
}

// Inspect scans an FBX ASCII document and summarizes its skeleton and
// animation content. It reads the subset of the format Encode writes.
func Inspect(r io.Reader) (*Summary, error) {
	s := &Summary{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	inCurve := false
	sawHeader := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "FBXVersion:"):
			v, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "FBXVersion:")))
			if err != nil {
				return nil, fmt.Errorf("invalid FBXVersion: %w", err)
			}
			s.Version = v
			sawHeader = true
		case strings.HasPrefix(line, "Title:"):
			s.Title = unquote(strings.TrimPrefix(line, "Title:"))
		case strings.HasPrefix(line, "P: \"TimeMode\""):
			s.TimeMode, _ = strconv.Atoi(lastField(line))
		case strings.HasPrefix(line, "P: \"LocalStop\""):
			s.StopKTime, _ = strconv.ParseInt(lastField(line), 10, 64)
		case strings.HasPrefix(line, "Model:") && strings.Contains(line, "\"LimbNode\""):
			if name, ok := objectName(line, "Model::"); ok {
				s.Joints = append(s.Joints, name)
			}
		case strings.HasPrefix(line, "Model:") && strings.Contains(line, "\"Model::Floor\""):
			s.HasFloor = true
		case strings.HasPrefix(line, "AnimationStack:"):
			if name, ok := objectName(line, "AnimStack::"); ok {
				s.Animation = name
			}
		case strings.HasPrefix(line, "AnimationCurve: "):
			s.Curves++
			inCurve = true
		case inCurve && strings.HasPrefix(line, "KeyTime: *"):
			field := strings.TrimSuffix(strings.TrimPrefix(line, "KeyTime: *"), "{")
			n, err := strconv.Atoi(strings.TrimSpace(field))
			if err == nil && s.Curves == 1 {
				s.Keys = n
			}
			inCurve = false
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fbx: %w", err)
	}
	if !sawHeader {
		return nil, fmt.Errorf("not an FBX ASCII document")
	}
	return s, nil
}

func unquote(s string) string {
	v, err := strconv.Unquote(strings.TrimSpace(s))
	if err != nil {
		return strings.Trim(strings.TrimSpace(s), "\"")
	}
	return v
}

func lastField(line string) string {
	i := strings.LastIndex(line, ",")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(line[i+1:])
}

// objectName extracts the name from a line like
// `Model: 1, "Model::Pelvis", "LimbNode"  {`.
func objectName(line, prefix string) (string, bool) {
	i := strings.Index(line, "\""+prefix)
	if i < 0 {
		return "", false
	}
	rest := line[i+1+len(prefix):]
	j := strings.Index(rest, "\"")
	if j < 0 {
		return "", false
	}
	return rest[:j], true
}
