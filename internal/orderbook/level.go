package orderbook

// PriceLevel holds all resting orders at a single price in strict arrival
// order. Nothing here may reorder entries; time priority within a price is
// FIFO by construction.
type PriceLevel struct {
	Price  int64
	Orders []*Order
}

func (pl *PriceLevel) Append(o *Order) {
	pl.Orders = append(pl.Orders, o)
}

// Front returns the oldest resting order, or nil if the level is empty.
func (pl *PriceLevel) Front() *Order {
	if len(pl.Orders) == 0 {
		return nil
	}
	return pl.Orders[0]
}

// PopFrontIfFilled discards the oldest order once its quantity is exhausted.
// Returns true if an order was removed.
func (pl *PriceLevel) PopFrontIfFilled() bool {
	if len(pl.Orders) == 0 || !pl.Orders[0].IsFilled() {
		return false
	}
	pl.Orders[0] = nil // Release for GC before reslicing
	pl.Orders = pl.Orders[1:]
	return true
}

// Remove unlinks an order by id, preserving the order of the rest.
// Returns false if the id is not resting at this level.
func (pl *PriceLevel) Remove(id uint64) bool {
	for i, o := range pl.Orders {
		if o.ID == id {
			pl.Orders = append(pl.Orders[:i], pl.Orders[i+1:]...)
			return true
		}
	}
	return false
}

func (pl *PriceLevel) Empty() bool {
	return len(pl.Orders) == 0
}

// TotalQuantity sums the unfilled quantity resting at this level.
func (pl *PriceLevel) TotalQuantity() int64 {
	var total int64
	for _, o := range pl.Orders {
		total += o.Remaining()
	}
	return total
}
