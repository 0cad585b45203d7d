package export

import (
	"fmt"
	"path"
)

// FileName names one exported chunk. With a single chunk and alwaysPart
// unset the part suffix is omitted.
func FileName(prefix, minDate, maxDate string, part, total int, alwaysPart bool) string {
	if total == 1 && !alwaysPart {
		return fmt.Sprintf("%s_%s_%s.csv", prefix, minDate, maxDate)
	}
	return fmt.Sprintf("%s_%s_%s_part%03d.csv", prefix, minDate, maxDate, part)
}

// remoteName places name under the job's sink directory.
func remoteName(dir, name string) string {
	if dir == "" {
		return name
	}
	return path.Join(dir, name)
}
