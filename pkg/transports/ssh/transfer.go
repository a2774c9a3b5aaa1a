package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
)

const copyChunk = 32 * 1024

// sftpClient returns the SFTP client of the live connection.
func (c *Client) sftpClient(ctx context.Context) (*sftp.Client, error) {
	conn, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sftp != nil && c.conn == conn {
		return c.sftp, nil
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		return nil, &TransportError{
			Op:          "sftp-init",
			Err:         fmt.Errorf("failed to create SFTP client: %w", err),
			IsTemporary: true,
		}
	}
	if c.conn == conn {
		c.sftp = client
	}
	return client, nil
}

// Upload writes r to remotePath, creating missing parent directories, and
// returns the number of bytes written.
func (c *Client) Upload(ctx context.Context, r io.Reader, remotePath string, mode os.FileMode) (int64, error) {
	start := time.Now()

	client, err := c.sftpClient(ctx)
	if err != nil {
		return 0, err
	}

	if err := client.MkdirAll(path.Dir(remotePath)); err != nil {
		return 0, &TransportError{
			Op:  "upload",
			Err: fmt.Errorf("failed to create remote directory: %w", err),
		}
	}

	remoteFile, err := client.Create(remotePath)
	if err != nil {
		return 0, &TransportError{
			Op:          "upload",
			Err:         fmt.Errorf("failed to create remote file: %w", err),
			IsTemporary: true,
		}
	}
	defer remoteFile.Close()

	written, err := copyWithContext(ctx, remoteFile, r)
	if err != nil {
		return written, &TransportError{
			Op:          "upload",
			Err:         fmt.Errorf("failed to copy file: %w", err),
			IsTemporary: ctx.Err() == nil,
		}
	}

	if mode > 0 {
		if err := client.Chmod(remotePath, mode); err != nil {
			c.logger.Warn().Err(err).Str("remote", remotePath).Msg("Failed to set file permissions")
		}
	}

	c.logger.Debug().
		Str("remote", remotePath).
		Int64("bytes", written).
		Dur("duration", time.Since(start)).
		Msg("File uploaded")

	return written, nil
}

// Remove deletes remotePath. A missing file is not an error.
func (c *Client) Remove(ctx context.Context, remotePath string) error {
	client, err := c.sftpClient(ctx)
	if err != nil {
		return err
	}

	if err := client.Remove(remotePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &TransportError{Op: "remove", Err: err}
	}
	return nil
}

// copyWithContext copies src to dst in chunks, stopping when ctx is done.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, copyChunk)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			w, err := dst.Write(buf[:n])
			written += int64(w)
			if err != nil {
				return written, err
			}
			if w != n {
				return written, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
