/**
 * SSH传输层
 * @author: amolani
 * @date: 2026.07.22
 * @description: 基于SSH的远程命令执行通道
 * @func: 密钥认证连接、命令执行与退出码提取、ctx取消时强制断开
 */
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	gssh "golang.org/x/crypto/ssh"

	"linbomaster/internal/config"
)

// SSHRunner SSH传输层实现
// 客户机运行LINBO环境时才监听SSH，连接失败属于正常路径而非异常
type SSHRunner struct {
	cfg config.RunnerConfig

	mu     sync.Mutex
	signer gssh.Signer
}

// NewSSHRunner 创建SSH传输层
func NewSSHRunner(cfg config.RunnerConfig) *SSHRunner {
	return &SSHRunner{cfg: cfg}
}

// loadSigner 懒加载并缓存私钥
func (r *SSHRunner) loadSigner() (gssh.Signer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.signer != nil {
		return r.signer, nil
	}
	raw, err := os.ReadFile(r.cfg.SSH.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %s: %w", r.cfg.SSH.PrivateKeyPath, err)
	}
	signer, err := gssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	r.signer = signer
	return signer, nil
}

// Connect 与目标主机建立SSH连接
func (r *SSHRunner) Connect(ctx context.Context, addr string) (RemoteShell, error) {
	signer, err := r.loadSigner()
	if err != nil {
		return nil, err
	}

	conf := &gssh.ClientConfig{
		User: r.cfg.SSH.User,
		Auth: []gssh.AuthMethod{gssh.PublicKeys(signer)},
		// 客户机是每次网启重新生成主机密钥的无盘工作站，无法固定校验
		HostKeyCallback: gssh.InsecureIgnoreHostKey(),
		Timeout:         r.cfg.ConnectTimeout,
	}

	type dialResult struct {
		client *gssh.Client
		err    error
	}
	done := make(chan dialResult, 1)
	go func() {
		client, dialErr := gssh.Dial("tcp", addr, conf)
		done <- dialResult{client: client, err: dialErr}
	}()

	select {
	case <-ctx.Done():
		// Dial自身有Timeout兜底，这里不等它返回
		go func() {
			if res := <-done; res.client != nil {
				_ = res.client.Close()
			}
		}()
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return &sshShell{client: res.client}, nil
	}
}

// sshShell 基于单个SSH连接的执行通道
// 每条命令开独立的SSH session，连接本身贯穿整个会话
type sshShell struct {
	client *gssh.Client
}

// Run 执行单条命令
// 环境变量以前缀赋值形式拼进命令行(目标sshd通常不接受Setenv)
func (s *sshShell) Run(ctx context.Context, args []string, env []string) (string, int, error) {
	if len(args) == 0 {
		return "", 0, nil
	}

	session, err := s.client.NewSession()
	if err != nil {
		return "", -1, err
	}
	defer session.Close()

	var output bytes.Buffer
	session.Stdout = &output
	session.Stderr = &output

	cmd := strings.Join(args, " ")
	if len(env) > 0 {
		cmd = strings.Join(env, " ") + " " + cmd
	}

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		// 强制关闭底层连接以中断远端命令等待
		_ = s.client.Close()
		return output.String(), -1, ctx.Err()
	case err = <-done:
	}

	if err != nil {
		if ee, ok := err.(*gssh.ExitError); ok {
			return output.String(), ee.ExitStatus(), nil
		}
		return output.String(), -1, err
	}
	return output.String(), 0, nil
}

// Close 关闭SSH连接
func (s *sshShell) Close() error {
	return s.client.Close()
}
