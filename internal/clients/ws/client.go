// Package ws 提供流式识别服务的WebSocket客户端
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"whisper_streaming/internal/audio"
	"whisper_streaming/internal/types"
)

// ErrRecognition 服务端返回识别失败
var ErrRecognition = errors.New("服务端识别失败")

// Config WebSocket客户端配置
type Config struct {
	URL              string        // WebSocket服务器地址
	HandshakeTimeout time.Duration // 握手超时
	WriteWait        time.Duration // 写超时
	ReadWait         time.Duration // 等待响应的超时，0表示不限制
}

// Client 流式识别客户端
type Client struct {
	config   Config
	conn     *websocket.Conn
	connLock sync.Mutex
}

// NewClient 创建新的WebSocket客户端
func NewClient(config Config) *Client {
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	if config.WriteWait == 0 {
		config.WriteWait = 10 * time.Second
	}
	return &Client{config: config}
}

// Connect 连接到WebSocket服务器
func (c *Client) Connect(ctx context.Context) error {
	c.connLock.Lock()
	defer c.connLock.Unlock()

	u, err := url.Parse(c.config.URL)
	if err != nil {
		return fmt.Errorf("解析URL失败: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("连接WebSocket失败: %w", err)
	}

	c.conn = conn
	return nil
}

// SendSamples 发送一段float32音频
func (c *Client) SendSamples(samples []float32) error {
	c.connLock.Lock()
	defer c.connLock.Unlock()

	if c.conn == nil {
		return fmt.Errorf("WebSocket连接未建立")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, audio.EncodeFloat32LE(samples)); err != nil {
		return fmt.Errorf("发送音频失败: %w", err)
	}
	return nil
}

// Receive 读取一条识别结果，服务端返回error时返回ErrRecognition
func (c *Client) Receive() (*types.Response, error) {
	c.connLock.Lock()
	conn := c.conn
	c.connLock.Unlock()

	if conn == nil {
		return nil, fmt.Errorf("WebSocket连接未建立")
	}

	if c.config.ReadWait > 0 {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadWait))
	}
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if string(message) == types.ErrorMessage {
			return nil, ErrRecognition
		}

		var resp types.Response
		if err := json.Unmarshal(message, &resp); err != nil {
			return nil, fmt.Errorf("解析消息失败: %w", err)
		}
		return &resp, nil
	}
}

// Close 发送关闭帧并关闭连接
func (c *Client) Close() error {
	c.connLock.Lock()
	defer c.connLock.Unlock()

	if c.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.config.WriteWait))
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Stream 按块发送音频，每块等待一条响应并回调
//
// interval大于0时按实时速度发送。识别失败的块会以ErrRecognition回调，不会中断发送。
func (c *Client) Stream(ctx context.Context, samples []float32, chunkSize int, interval time.Duration, fn func(*types.Response, error)) error {
	if chunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}

	var ticker *time.Ticker
	if interval > 0 {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	for start := 0; start < len(samples); start += chunkSize {
		end := min(start+chunkSize, len(samples))
		if err := c.SendSamples(samples[start:end]); err != nil {
			return err
		}

		resp, err := c.Receive()
		if err != nil && !errors.Is(err, ErrRecognition) {
			return err
		}
		fn(resp, err)

		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
