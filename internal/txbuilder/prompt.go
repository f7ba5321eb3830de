package txbuilder

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const confirmQuestion = `Confirm transaction? (please type "yes", case insensitive): `

// TerminalPrompter prints the cost breakdown to Out and reads one line from In.
// Successive Confirm calls share one buffered reader over In.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

func (p *TerminalPrompter) Confirm(s CostSummary) (bool, error) {
	w := p.Out
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Gas:                  %d\n", s.Gas)
	fmt.Fprintf(w, "Gas price:            %s Gwei\n", FormatUnits(s.GasPrice, UnitGwei))
	fmt.Fprintf(w, "Fee:                  %s Ether\n", FormatUnits(s.Fee(), UnitEther))
	fmt.Fprintf(w, "Max fee / gas:        %s Gwei\n", FormatUnits(s.MaxFeePerGas, UnitGwei))
	fmt.Fprintf(w, "Max prior. fee / gas: %s Gwei\n", FormatUnits(s.MaxPriorityFeePerGas, UnitGwei))
	fmt.Fprintf(w, "Max fee:              %s Ether\n", FormatUnits(s.MaxFee(), UnitEther))
	fmt.Fprintf(w, "Value:                %s Ether\n", FormatUnits(s.Value, UnitEther))
	fmt.Fprintf(w, "Cost:                 %s Ether\n", FormatUnits(s.Cost(), UnitEther))
	fmt.Fprintf(w, "Max cost:             %s Ether\n", FormatUnits(s.MaxCost(), UnitEther))
	fmt.Fprintf(w, "Balance:              %s Ether\n", FormatUnits(s.Balance, UnitEther))
	fmt.Fprintf(w, "After balance:        %s Ether\n", FormatUnits(s.AfterBalance(), UnitEther))
	fmt.Fprintf(w, "Min. after balance:   %s Ether\n", FormatUnits(s.MinAfterBalance(), UnitEther))
	fmt.Fprintln(w)
	fmt.Fprint(w, confirmQuestion)

	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), "yes"), nil
}
