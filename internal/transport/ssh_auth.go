package transport

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// clientConfig collects the auth methods in order agent, key file, default
// keys, password, and the host key check.
func clientConfig(opts SSHOptions) (*ssh.ClientConfig, error) {
	var methods []ssh.AuthMethod

	if opts.Agent {
		if m := agentAuth(); m != nil {
			methods = append(methods, m)
		}
	}
	switch {
	case opts.KeyFile != "":
		m, err := keyAuth(opts.KeyFile, opts.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("key file auth: %w", err)
		}
		methods = append(methods, m)
	case !opts.Agent:
		for _, p := range defaultKeys() {
			if m, err := keyAuth(p, ""); err == nil {
				methods = append(methods, m)
				break
			}
		}
	}
	if opts.AllowPassword && opts.Password != "" {
		methods = append(methods, ssh.Password(opts.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no authentication methods available")
	}

	check, err := hostKeyCheck(opts)
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            sshUser(opts),
		Auth:            methods,
		HostKeyCallback: check,
		Timeout:         opts.ConnectTimeout,
	}, nil
}

func hostKeyCheck(opts SSHOptions) (ssh.HostKeyCallback, error) {
	if opts.InsecureIgnoreHost {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	file := opts.KnownHostsFile
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate known_hosts: %w", err)
		}
		file = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(file)
	if err != nil {
		return nil, fmt.Errorf("known hosts: %w (add ?insecure=true to skip verification)", err)
	}
	return cb, nil
}

func sshUser(opts SSHOptions) string {
	if opts.User != "" {
		return opts.User
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return os.Getenv("USERNAME")
}

// agentAuth returns nil unless SSH_AUTH_SOCK reaches an agent.
func agentAuth() ssh.AuthMethod {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers)
}

func keyAuth(file, passphrase string) (ssh.AuthMethod, error) {
	pem, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(pem)
	}
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

func defaultKeys() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	dir := filepath.Join(home, ".ssh")
	return []string{
		filepath.Join(dir, "id_ed25519"),
		filepath.Join(dir, "id_ecdsa"),
		filepath.Join(dir, "id_rsa"),
	}
}
