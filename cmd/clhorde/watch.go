package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/abusi/clhorde/internal/ipc"
	"github.com/abusi/clhorde/internal/protocol"
)

// watchCmd subscribes to the daemon and streams one prompt's raw PTY
// output to the local terminal. The terminal goes raw so the agent's
// escape sequences render as they would in a direct session; detach with
// ctrl-c (the worker keeps running).
func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <prompt-id>",
		Short: "Stream a running prompt's terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePromptID(args[0])
			if err != nil {
				return err
			}
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Send(protocol.ClientRequest{Type: protocol.ReqSubscribe}); err != nil {
				return err
			}

			fd := int(os.Stdin.Fd())
			if term.IsTerminal(fd) {
				oldState, err := term.MakeRaw(fd)
				if err != nil {
					return fmt.Errorf("raw mode: %w", err)
				}
				defer term.Restore(fd, oldState)

				if cols, rows, err := term.GetSize(fd); err == nil {
					c.Send(protocol.ClientRequest{
						Type:     protocol.ReqResizePty,
						PromptID: id,
						Cols:     uint16(cols),
						Rows:     uint16(rows),
					})
				}

				// Forward keystrokes to the worker.
				go func() {
					buf := make([]byte, 1024)
					for {
						n, err := os.Stdin.Read(buf)
						if n > 0 {
							data := make([]byte, n)
							copy(data, buf[:n])
							if data[0] == 0x03 { // ctrl-c detaches
								c.Close()
								return
							}
							c.Send(protocol.ClientRequest{Type: protocol.ReqSendBytes, PromptID: id, Data: data})
						}
						if err != nil {
							return
						}
					}
				}()
			}

			for {
				payload, err := c.ReadRaw()
				if err != nil {
					return nil // disconnected or detached
				}
				if !ipc.IsBinaryFrame(payload) {
					var ev protocol.DaemonEvent
					// Replay frames arrive as JSON before the live stream.
					if jsonErr := json.Unmarshal(payload, &ev); jsonErr == nil &&
						ev.Type == protocol.EvPtyReplay && ev.PromptID == id {
						os.Stdout.Write(ev.Data)
					}
					continue
				}
				frameID, data, err := ipc.DecodePtyFrame(payload)
				if err != nil || frameID != id {
					continue
				}
				os.Stdout.Write(data)
			}
		},
	}
}
