package session

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/fatih/color"

	"github.com/eclair-lang/eclair-cli/internal/interp"
)

// AnvilInstance is a locally spawned anvil process backing vm.fork().
type AnvilInstance struct {
	cmd  *exec.Cmd
	port int
}

func (a *AnvilInstance) Endpoint() string {
	return fmt.Sprintf("http://127.0.0.1:%d", a.port)
}

// Stop kills the process; errors are ignored since the process may
// already be gone.
func (a *AnvilInstance) Stop() {
	if a.cmd != nil && a.cmd.Process != nil {
		_ = a.cmd.Process.Kill()
		_ = a.cmd.Wait()
	}
}

// freePort asks the kernel for an unused TCP port.
func freePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// StartAnvil spawns anvil, forking the upstream endpoint when one is
// given, and waits until the RPC port accepts connections.
func StartAnvil(ctx context.Context, forkURL string) (*AnvilInstance, error) {
	port, err := freePort()
	if err != nil {
		return nil, interp.IOError("allocating port", err)
	}
	args := []string{"--port", fmt.Sprintf("%d", port)}
	if forkURL != "" {
		args = append(args, "--fork-url", forkURL)
	}
	cmd := exec.Command("anvil", args...)
	cmd.Stdout = nil
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, interp.IOError("starting anvil (is foundry installed?)", err)
	}
	instance := &AnvilInstance{cmd: cmd, port: port}

	color.New(color.FgCyan).Fprintf(os.Stderr, "forking with anvil on port %d...\n", port)

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			instance.Stop()
			return nil, ctx.Err()
		default:
		}
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 250*time.Millisecond)
		if err == nil {
			conn.Close()
			return instance, nil
		}
		time.Sleep(250 * time.Millisecond)
	}
	instance.Stop()
	return nil, interp.IOError("anvil did not come up", fmt.Errorf("timeout after 15s"))
}
