package datasets

import "bufio"
import "io"
import "math/rand/v2"
import "strconv"

// GenerateInstances writes numInstances random binary records of numAttributes
// attributes followed by a binary class, one comma separated record per line.
func GenerateInstances(rng *rand.Rand, w io.Writer, numInstances, numAttributes int) error {
	var bw = bufio.NewWriter(w)
	var line []byte
	for i := 0; i < numInstances; i++ {
		line = line[:0]
		for j := 0; j < numAttributes; j++ {
			line = strconv.AppendInt(line, int64(rng.IntN(2)), 10)
			line = append(line, ',')
		}
		line = strconv.AppendInt(line, int64(rng.IntN(2)), 10)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}
