package log

import (
	"bytes"
	"errors"
	"os"
	"sync"
	"time"
)

// _asyncByteSizePerIOWrite caps one batched disk write at 10MB so the
// accumulation buffer never reallocates past that.
const _asyncByteSizePerIOWrite = 10 << 20

// FileAppender writes log lines to a rotating file, either synchronously
// under a mutex or through a background goroutine that batches writes.
// Async mode trades crash durability for never blocking the logging
// goroutine on disk.
type FileAppender struct {
	fileName          string
	fileSplitMB       int
	fileSplitHour     int
	isAsync           bool
	asyncWriteMillSec int
	fileFd            *os.File
	fileCreateTime    time.Time
	lock              sync.Mutex
	bufChan           chan *bytes.Buffer
	ntfChan           chan chan struct{}
	asyncSendBuf      *bytes.Buffer
	bufferPool        sync.Pool
}

// NewFileAppender builds a file appender from cfg, applying defaults for
// unset or out-of-range fields rather than rejecting them. The file itself
// is opened on the first write, not here.
func NewFileAppender(cfg *LogCfg) *FileAppender {
	a := &FileAppender{}
	if err := a.init(cfg); err != nil {
		panic(err)
	}
	return a
}

func (a *FileAppender) init(cfg *LogCfg) error {
	if err := normalizeCfg(cfg); err != nil {
		return err
	}

	a.fileName = cfg.LogPath
	a.isAsync = cfg.IsAsync
	a.asyncWriteMillSec = cfg.AsyncWriteMillSec
	a.fileSplitMB = cfg.FileSplitMB
	a.fileSplitHour = cfg.FileSplitHour

	if cfg.IsAsync {
		a.bufferPool = sync.Pool{
			New: func() interface{} {
				return &bytes.Buffer{}
			},
		}

		a.asyncSendBuf = bytes.NewBuffer(make([]byte, 0, _asyncByteSizePerIOWrite))

		a.bufChan = make(chan *bytes.Buffer, cfg.AsyncCacheSize)
		a.ntfChan = make(chan chan struct{})
		go a.asyncWriteLoop()
	}

	return nil
}

// normalizeCfg fills unset fields with usable defaults rather than
// rejecting them; appenders are often built from partial configurations.
func normalizeCfg(cfg *LogCfg) error {
	if len(cfg.LogPath) == 0 {
		cfg.LogPath = "./framelib.log"
	}
	if cfg.LogLevel <= 0 {
		cfg.LogLevel = DebugLevel
	}

	if cfg.FileSplitMB <= 0 {
		cfg.FileSplitMB = 50
	}

	if cfg.FileSplitHour < 0 {
		cfg.FileSplitHour = 24
	}

	if cfg.IsAsync {
		if cfg.AsyncCacheSize <= 0 {
			cfg.AsyncCacheSize = 1024
		}
		if cfg.AsyncWriteMillSec <= 0 {
			cfg.AsyncWriteMillSec = 200
		}
	}
	return nil
}

// Write dispatches to the configured mode. Async returns as soon as the
// line is queued; sync blocks through rotation and the disk write.
func (a *FileAppender) Write(buf []byte) (n int, err error) {
	if a.isAsync {
		a.writeAsync(buf)
		return len(buf), nil
	}

	return a.writeSync(buf)
}

// Refresh drains the async queue and syncs the file. A no-op in sync
// mode.
func (a *FileAppender) Refresh() error {
	if !a.isAsync {
		return nil
	}
	doneChan := make(chan struct{})
	a.ntfChan <- doneChan
	<-doneChan
	return nil
}

// Close flushes pending lines, stops the async goroutine, and closes the
// file.
func (a *FileAppender) Close() error {
	if a.isAsync {
		_ = a.Refresh()
		close(a.ntfChan)
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	if a.fileFd != nil {
		err := a.fileFd.Close()
		a.fileFd = nil
		return err
	}
	return nil
}

// writeSync rotates if due and writes under the appender lock.
func (a *FileAppender) writeSync(buf []byte) (n int, err error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	newFd, newFileCreateTime, err := UpdateFileFd(a.fileName,
		a.fileSplitHour,
		a.fileSplitMB,
		a.fileFd, a.fileCreateTime)
	if err != nil {
		return 0, err
	}
	if newFd == nil {
		return 0, errors.New("writeSync: rotation returned no file")
	}
	a.fileFd = newFd
	a.fileCreateTime = newFileCreateTime
	return a.fileFd.Write(buf)
}

// writeAsync copies the line into a pooled buffer and queues it. When the
// queue is full it nudges the writer goroutine to drain and then blocks
// until the line fits; lines are never dropped.
func (a *FileAppender) writeAsync(buf []byte) {
	buffer := a.bufferPool.Get().(*bytes.Buffer)
	buffer.Reset()
	buffer.Write(buf)

	select {
	case a.bufChan <- buffer:
	default:
		select {
		case a.bufChan <- buffer:
		case a.ntfChan <- nil:
			a.bufChan <- buffer
		}
	}
}

// writeAll drains the queue into the accumulation buffer, flushing to
// disk whenever the batch cap would be exceeded and once more at the end.
func (a *FileAppender) writeAll() {
	for {
		select {
		case buffer := <-a.bufChan:
			if a.asyncSendBuf.Len()+buffer.Len() > _asyncByteSizePerIOWrite {
				a.writeSync(a.asyncSendBuf.Bytes())
				a.asyncSendBuf.Reset()
			}
			a.asyncSendBuf.Write(buffer.Bytes())

			buffer.Reset()
			a.bufferPool.Put(buffer)
		default:
			if a.asyncSendBuf.Len() > 0 {
				a.writeSync(a.asyncSendBuf.Bytes())
				a.asyncSendBuf.Reset()
			}
			return
		}
	}
}

// asyncWriteLoop alternates between timed batch flushes and on-demand
// flushes requested through ntfChan. Closing ntfChan shuts it down after
// a final drain.
func (a *FileAppender) asyncWriteLoop() {
	tickTimer := time.NewTicker(time.Duration(a.asyncWriteMillSec) * time.Millisecond)
	defer tickTimer.Stop()
	for {
		select {
		case doneChan, ok := <-a.ntfChan:
			a.writeAll()
			if doneChan != nil {
				if a.fileFd != nil {
					_ = a.fileFd.Sync()
				}
				doneChan <- struct{}{}
			}
			if !ok {
				return
			}
		case <-tickTimer.C:
			a.writeAll()
		}
	}
}
