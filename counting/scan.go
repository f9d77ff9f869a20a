package counting

import "bufio"
import "context"
import "errors"
import "io"

import "github.com/neurlang/rbnc/datasets"

// maxLine is the longest record line Scan accepts
const maxLine = 64 << 20

// Summary reports one scan over a record stream
type Summary struct {
	Records  int64 // records counted
	Rejected int64 // records rejected as invalid

	// FirstRejected is the error of the first rejected record, nil if none
	FirstRejected error
}

// Scan counts every line of r. Invalid records are rejected and skipped. The
// context is observed between records only; on cancellation everything counted
// so far stays valid. Offsets are byte offsets starting at firstOffset.
func (c *Counter) Scan(ctx context.Context, r io.Reader, firstOffset int64) (sum Summary, err error) {
	var sc = bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	// advance of the last token, including the line ending that ScanLines strips
	var consumed int
	sc.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		advance, token, err := bufio.ScanLines(data, atEOF)
		consumed = advance
		return advance, token, err
	})
	var offset = firstOffset
	defer func() {
		c.metrics.Counted(sum.Records)
		c.metrics.Rejected(sum.Rejected)
	}()
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		default:
		}
		line := sc.Text()
		lineOffset := offset
		offset += int64(consumed)

		rec, err := c.splitter.ParseRecord(lineOffset, line)
		if err == nil {
			err = c.count(rec, lineOffset, 1)
		}
		if err != nil {
			if !errors.Is(err, datasets.ErrInvalidRecord) {
				return sum, err
			}
			sum.Rejected++
			if sum.FirstRejected == nil {
				sum.FirstRejected = err
			}
			c.logger.Debug("record rejected", "offset", lineOffset, "error", err)
			continue
		}
		sum.Records++
	}
	if err := sc.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}
