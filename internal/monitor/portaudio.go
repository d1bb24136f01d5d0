package monitor

import "github.com/gordonklaus/portaudio"

// openDefaultStream initialises portaudio and opens an output-only stream
// whose buffer is backed by out.
func openDefaultStream(sampleRate int, out []int16) (stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	st, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(out), out)
	if err != nil {
		terminate()
		return nil, err
	}
	return st, nil
}

func terminate() {
	_ = portaudio.Terminate()
}
