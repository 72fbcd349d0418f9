//go:build !linux

package affinity

func Pin(cpu int) error {
	return ErrUnsupported
}

func Current() ([]int, error) {
	return nil, ErrUnsupported
}
