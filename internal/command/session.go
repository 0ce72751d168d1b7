package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"bourse/internal/engine"
	"bourse/internal/report"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// line links raw input to where it came from.
type line struct {
	number int
	text   string
}

// Session runs a stream of commands against an engine. One goroutine reads
// input, another executes, so commands run strictly in input order.
type Session struct {
	engine *engine.Engine
	in     io.Reader
	out    io.Writer
	lines  chan line
}

func NewSession(eng *engine.Engine, in io.Reader, out io.Writer) *Session {
	return &Session{
		engine: eng,
		in:     in,
		out:    out,
		lines:  make(chan line, 1),
	}
}

// Run blocks until the input is exhausted and every command has executed.
// Cancelling the context stops execution, but Run only returns once the
// pending read completes. Rejected commands are reported to the output and
// do not stop the session; only read and write failures are returned.
func (s *Session) Run(ctx context.Context) error {
	t, _ := tomb.WithContext(ctx)

	t.Go(func() error {
		return s.reader(t)
	})
	t.Go(func() error {
		return s.commandHandler(t)
	})

	return t.Wait()
}

// reader scans input lines and hands them to the command handler, skipping
// blanks and # comments.
func (s *Session) reader(t *tomb.Tomb) error {
	defer close(s.lines)

	scanner := bufio.NewScanner(s.in)
	number := 0
	for scanner.Scan() {
		number++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		select {
		case <-t.Dying():
			return nil
		case s.lines <- line{number: number, text: text}:
		}
	}
	return scanner.Err()
}

// commandHandler executes commands one at a time.
func (s *Session) commandHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case l, ok := <-s.lines:
			if !ok {
				return nil
			}
			if err := s.execute(l); err != nil {
				return err
			}
		}
	}
}

func (s *Session) execute(l line) error {
	cmd, err := ParseCommand(l.text)
	if err != nil {
		return s.reject(l, err)
	}

	switch c := cmd.(type) {
	case TransferCommand:
		if c.TypeOf == Deposit {
			err = s.engine.Deposit(c.User, c.Asset, c.Amount)
		} else {
			err = s.engine.Withdraw(c.User, c.Asset, c.Amount)
		}
	case NewOrderCommand:
		var res engine.Result
		res, err = s.engine.SubmitOrder(c.User, c.Side, c.Asset, c.Quantity, c.Price)
		if err == nil {
			log.Debug().
				Int("line", l.number).
				Uint64("order", res.Order.ID).
				Int("trades", len(res.Trades)).
				Bool("resting", res.Resting()).
				Msg("order accepted")
		}
	case BaseCommand:
		return s.print(c.TypeOf)
	}

	if err != nil {
		return s.reject(l, err)
	}
	return nil
}

func (s *Session) print(typeOf CommandType) error {
	snap := s.engine.Snapshot()
	switch typeOf {
	case PrintPortfolios:
		return report.Portfolios(s.out, snap)
	case PrintTrades:
		return report.TradeHistory(s.out, snap)
	case PrintSpread:
		return report.BidAskSpread(s.out, snap)
	case PrintOrders:
		return report.UserOrders(s.out, snap)
	}
	return nil
}

func (s *Session) reject(l line, cause error) error {
	log.Warn().Err(cause).Int("line", l.number).Str("command", l.text).Msg("command rejected")
	_, err := fmt.Fprintf(s.out, "line %d: %s: %v\n", l.number, l.text, cause)
	return err
}
