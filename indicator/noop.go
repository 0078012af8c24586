package indicator

// Noop is an Indicator that does nothing, used when no hardware is
// configured.
type Noop struct{}

func (n *Noop) Idle()           {}
func (n *Noop) Card(found bool) {}
func (n *Noop) ReaderLost()     {}
func (n *Noop) Release() error  { return nil }
