// Package proto implements the line-oriented command protocol: parsing one
// request line into a command, dispatching it to an operation handler, and
// formatting the single-line reply.
package proto

import "strings"

// Command verbs recognized by the processor.
const (
	VerbQuery    = "QUERY"
	VerbCredit   = "CREDIT"
	VerbDebit    = "DEBIT"
	VerbCreate   = "CREATE"
	VerbTransfer = "TRANSFER"
	VerbHistory  = "HISTORY"
	VerbStats    = "STATS"
	VerbQuit     = "QUIT"
)

// Command is one parsed request line: the uppercased verb and its positional
// arguments.
type Command struct {
	Verb string
	Args []string
}

// Parse splits a request line on whitespace. The first token, uppercased,
// selects the operation; the rest are positional arguments. An empty line
// yields an empty verb, which dispatch rejects as a bad command.
func Parse(line string) Command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}
	}
	return Command{
		Verb: strings.ToUpper(fields[0]),
		Args: fields[1:],
	}
}

// Reply field separator and status tokens of the wire protocol.
const (
	fieldSep    = "|"
	statusOK    = "OK"
	statusError = "ERROR"
)

// ok builds an OK reply from the given fields.
func ok(fields ...string) string {
	return statusOK + fieldSep + strings.Join(fields, fieldSep)
}

// fail builds an ERROR reply from the given fields.
func fail(fields ...string) string {
	return statusError + fieldSep + strings.Join(fields, fieldSep)
}

// Fixed failure replies.
var (
	replyBadCommand    = fail("Bad command")
	replyBadAmount     = fail("Invalid amount format")
	replyNonPositive   = fail("Amount must be positive")
	replyNotFound      = fail("Account not found")
	replyInvalidID     = fail("Invalid id format")
	replyExists        = fail("Account already exists")
	replyNameRequired  = fail("First and last name required")
	replySelfTransfer  = fail("Cannot transfer to the same account")
	replySourceMissing = fail("Source account not found")
	replyDestMissing   = fail("Destination account not found")
	replyInternalError = fail("Internal error")
)
