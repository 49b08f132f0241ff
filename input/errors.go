package input

import "fmt"

type sentinelErr string

func newSentinelErr(msg string) error { return sentinelErr(msg) }

func (e sentinelErr) Error() string { return string(e) }

func newReaderInitError(name string) error {
	return fmt.Errorf("input: reader %q failed to initialize", name)
}
