package chatclient

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"ai-chat-go/pkg/log"
)

const dataPrefix = "data: "

// eventReader 从任意切分的字节流中还原 SSE 事件序列。
// 一个事件的字节可能被拆到多次读取里，多个事件也可能挤在一次读取里；
// 未凑成完整行的字节（包括被截断的多字节 UTF-8 序列）留在缓冲区里等下一次读取，
// 换行符 0x0A 不会出现在多字节序列的后续字节中，按字节找行是安全的。
type eventReader struct {
	r       io.Reader
	pending []byte
	chunk   []byte
	eof     bool
	done    bool
}

func newEventReader(r io.Reader) *eventReader {
	return &eventReader{
		r:     r,
		chunk: make([]byte, 4096),
	}
}

// Next 返回下一条记录携带的文本。
// 收到 [DONE] 哨兵或底层流干净结束时返回 io.EOF，之后丢弃剩余缓冲；
// 单条无法解码的记录被跳过，不会中断整个流。
func (er *eventReader) Next() (string, error) {
	if er.done {
		return "", io.EOF
	}
	for {
		// 先消费缓冲区里已经完整的行
		for {
			i := bytes.IndexByte(er.pending, '\n')
			if i < 0 {
				break
			}
			line := string(er.pending[:i])
			er.pending = er.pending[i+1:]

			text, ok := er.decodeLine(line)
			if er.done {
				return "", io.EOF
			}
			if ok {
				return text, nil
			}
		}

		// 底层流已结束且缓冲区里没有完整行了，没见到哨兵也按正常结束处理
		if er.eof {
			er.done = true
			return "", io.EOF
		}

		n, err := er.r.Read(er.chunk)
		if n > 0 {
			er.pending = append(er.pending, er.chunk[:n]...)
		}
		if err == io.EOF {
			// Read 允许在同一次调用里既交付字节又返回 io.EOF，
			// 先把这批字节消费完再结束
			er.eof = true
			continue
		}
		if err != nil {
			er.done = true
			return "", err
		}
	}
}

// decodeLine 解析一行。第二个返回值表示是否解析出了非空文本。
func (er *eventReader) decodeLine(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return "", false
	}
	if payload == sentinel {
		er.done = true
		return "", false
	}

	var event struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		// 容忍单条坏记录
		log.Debugf("skipping malformed stream record: %v", err)
		return "", false
	}
	if event.Text == "" {
		return "", false
	}
	return event.Text, true
}
