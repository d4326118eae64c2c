package sampling

// Client exposes the sampling RPCs as direct Go method calls over a Store,
// for in-process or test use without an HTTP round trip. Method names
// mirror spec.md §6.4's RPC names in Go case.
type Client struct {
	store Store
}

// NewClient wraps store for in-process access.
func NewClient(store Store) *Client {
	return &Client{store: store}
}

func (c *Client) NumFlows() int64 {
	return c.store.NumFlows()
}

func (c *Client) GetFlowIDs() []int64 {
	return c.store.FlowIDs()
}

func (c *Client) GetFlowTS(flowID int64) []int64 {
	sample, ok := c.store.Flow(flowID)
	if !ok {
		return nil
	}
	return sample.ArrivalNS
}

func (c *Client) GetFlowDelta(flowID int64) []int64 {
	sample, ok := c.store.Flow(flowID)
	if !ok {
		return nil
	}
	return sample.Delta
}

func (c *Client) GetFlowMissMIN(flowID int64) []int64 {
	sample, ok := c.store.Flow(flowID)
	if !ok {
		return nil
	}
	return sample.MissMIN
}

func (c *Client) GetFlowMissSim(flowID int64) []int64 {
	sample, ok := c.store.Flow(flowID)
	if !ok {
		return nil
	}
	return sample.MissSim
}
