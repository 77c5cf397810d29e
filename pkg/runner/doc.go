/*
Package runner drives a conversation from a line-oriented frontend.

The Runner renders the step the user is looking at, reads a line, and
turns it into navigation: plain text is submitted as the step's answer
and the conversation continues; lines starting with ':' are commands.

	:back        step back
	:goto <id>   jump to a vertex
	:quit        stop
	:help        list commands

Steps that are complete and take no input (auto messages, gates) are
shown and passed without waiting. Frontends plug in through IOHandler:
TextHandler for terminals and JSONHandler for JSON-lines clients.

# Usage

	r := runner.New(
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
		runner.WithLogger(logger),
	)
	if err := r.Run(ctx, conv); err != nil {
		log.Fatal(err)
	}
*/
package runner
