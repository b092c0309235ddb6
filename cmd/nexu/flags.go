package main

// multiAddrs is a custom flag type for handling multiple multiaddr arguments.
type multiAddrs []string

func (m *multiAddrs) String() string { return "" }
func (m *multiAddrs) Set(s string) error {
	*m = append(*m, s)
	return nil
}
