// Package txbuilder turns a contract deployment or call into a mined
// transaction.
//
//	tr := txbuilder.NewTransactor(client, txbuilder.NewGuard(prompter, logger), logger, txbuilder.TransactorConfig{})
//	receipt, err := tr.Transact(ctx, txbuilder.Intent{From: from, To: &to, Data: data}, key, true)
//
// Without a key the node signs with its own account and no fee fields are
// set. With a key the worst-case cost is checked against the balance before
// signing.
package txbuilder
