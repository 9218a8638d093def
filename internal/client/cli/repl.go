package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. The real App
// satisfies it; tests provide a recording stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error

	List(ctx context.Context, args []string) error
	Open(ctx context.Context, args []string) error
	New(ctx context.Context, args []string) error
	Sub(ctx context.Context, args []string) error
	Rename(ctx context.Context, args []string) error
	Favorite(ctx context.Context, args []string) error
	Remove(ctx context.Context, args []string) error

	AddText(ctx context.Context, args []string) error
	AddCheckbox(ctx context.Context, args []string) error
	Toggle(ctx context.Context, args []string) error
	AddNumbered(ctx context.Context, args []string) error
	AddBullet(ctx context.Context, args []string) error
	AddImage(ctx context.Context, args []string) error
	AddFile(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	DeleteItem(ctx context.Context, args []string) error
	MoveItem(ctx context.Context, args []string) error

	Sync(ctx context.Context, args []string) error
	Export(ctx context.Context, args []string) error
	Import(ctx context.Context, args []string) error
	TUI(ctx context.Context, args []string) error
}

const helpText = `Workspaces: ls, open <n|id|name|..>, new <name>, sub <name>, rename <name>, fav, rm
Content:    show, text [text], check <text>, toggle <n>, num <text>, bullet <text>,
            image <path>, file <path>, del <n>, mv <from> <to>
Other:      sync, export <json|yaml|md> <path>, import <json|yaml> <path>, tui, help, exit`

// runREPL reads commands line by line and dispatches them to a. Errors from
// handlers are printed and the loop continues. It returns on EOF, "exit" or
// "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, w io.Writer) {
	for {
		fmt.Fprintf(w, "mindnote (%s)> ", statusFn())
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			fmt.Fprintln(w, helpText)
			if a.isLoggedIn() {
				fmt.Fprintln(w, "Account:    logout")
			} else {
				fmt.Fprintln(w, "Account:    register, login")
			}

		case "register":
			err = a.Register(ctx, args)
		case "login":
			err = a.Login(ctx, args)
		case "logout":
			err = a.Logout(ctx, args)

		case "l", "ls", "list":
			err = a.List(ctx, args)
		case "open", "cd":
			err = a.Open(ctx, args)
		case "new":
			err = a.New(ctx, args)
		case "sub":
			err = a.Sub(ctx, args)
		case "rename":
			err = a.Rename(ctx, args)
		case "fav":
			err = a.Favorite(ctx, args)
		case "rm":
			err = a.Remove(ctx, args)

		case "text":
			err = a.AddText(ctx, args)
		case "check":
			err = a.AddCheckbox(ctx, args)
		case "toggle":
			err = a.Toggle(ctx, args)
		case "num":
			err = a.AddNumbered(ctx, args)
		case "bullet":
			err = a.AddBullet(ctx, args)
		case "image":
			err = a.AddImage(ctx, args)
		case "file":
			err = a.AddFile(ctx, args)
		case "show":
			err = a.Show(ctx, args)
		case "del":
			err = a.DeleteItem(ctx, args)
		case "mv":
			err = a.MoveItem(ctx, args)

		case "sync":
			err = a.Sync(ctx, args)
		case "export":
			err = a.Export(ctx, args)
		case "import":
			err = a.Import(ctx, args)
		case "tui":
			err = a.TUI(ctx, args)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if err != nil {
			fmt.Fprintln(w, "Error:", err)
		}
	}
}
