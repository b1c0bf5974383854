package execution

import (
	"context"
	"fmt"
	"log"
	"sync"

	"meanrev-traderv1/internal/model"
)

// PaperClient simulates the broker's execution contract without real calls.
// Useful for dry-running the live pipeline against real market data. It
// tracks at most one open position, matching the live invariant.
type PaperClient struct {
	mu        sync.Mutex
	equity    float64
	lastPrice float64
	position  *model.PositionState
	orderSeq  int64
}

// NewPaperClient creates a paper client with the given starting equity.
func NewPaperClient(startingEquity float64) *PaperClient {
	return &PaperClient{equity: startingEquity}
}

// MarkPrice updates the simulated mark used for fills and unrealized PnL.
// Call it with each completed bar's close.
func (p *PaperClient) MarkPrice(price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastPrice = price
	if p.position != nil {
		p.position.UnrealizedPnL = signedPnL(p.position, price)
	}
}

// PlaceOrder fills immediately at the current mark.
func (p *PaperClient) PlaceOrder(ctx context.Context, symbol string, side model.Side, qty int64, orderType string) (model.OrderAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastPrice == 0 {
		return model.OrderAck{}, fmt.Errorf("paper: no mark price yet")
	}

	p.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", p.orderSeq)

	if p.position != nil && side == p.position.Side.Opposite() {
		// Closing fill: realize the PnL into equity.
		realized := signedPnL(p.position, p.lastPrice)
		p.equity += realized
		log.Printf("[paper] closed %s qty=%d at %.2f realized=%.2f equity=%.2f",
			p.position.Side, p.position.Quantity, p.lastPrice, realized, p.equity)
		p.position = nil
		return model.OrderAck{OrderID: orderID, Status: "FILLED"}, nil
	}

	p.position = &model.PositionState{
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		EntryPrice: p.lastPrice,
		PositionID: orderID,
	}
	log.Printf("[paper] opened %s %s qty=%d at %.2f order=%s", side, symbol, qty, p.lastPrice, orderID)
	return model.OrderAck{OrderID: orderID, Status: "FILLED"}, nil
}

// OpenPositions returns the simulated position, if any.
func (p *PaperClient) OpenPositions(ctx context.Context) ([]model.PositionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.position == nil {
		return nil, nil
	}
	pos := *p.position
	return []model.PositionState{pos}, nil
}

// AccountEquity returns the simulated equity.
func (p *PaperClient) AccountEquity(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.equity, nil
}

func signedPnL(pos *model.PositionState, mark float64) float64 {
	diff := mark - pos.EntryPrice
	if pos.Side == model.SideSell {
		diff = -diff
	}
	return diff * float64(pos.Quantity)
}
