package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	dalkafka "cex-ledger/biz/dal/kafka"
	dalredis "cex-ledger/biz/dal/redis"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/hertz-contrib/websocket"
	"github.com/panjf2000/ants/v2"
	"github.com/segmentio/kafka-go"
)

const shardNum = 32

var upgrader = websocket.HertzUpgrader{
	CheckOrigin: func(ctx *app.RequestContext) bool {
		return true
	},
}

// ChannelShard holds the subscriptions and the message buffer for a slice of
// the channel space.
type ChannelShard struct {
	Mu     sync.RWMutex
	Subs   map[string]map[*websocket.Conn]struct{}
	MsgBuf map[string]chan []byte
}

var channelShards [shardNum]*ChannelShard

var broadcastPool *ants.Pool

func init() {
	for i := 0; i < shardNum; i++ {
		channelShards[i] = &ChannelShard{
			Subs:   make(map[string]map[*websocket.Conn]struct{}),
			MsgBuf: make(map[string]chan []byte),
		}
	}
	pool, err := ants.NewPool(1024)
	if err != nil {
		panic(err)
	}
	broadcastPool = pool
}

// ensureChannelDispatcher starts the per-channel fan-out goroutine.
func ensureChannelDispatcher(shard *ChannelShard, channel string) {
	if _, ok := shard.MsgBuf[channel]; ok {
		return
	}
	msgBuf := make(chan []byte, 4096)
	shard.MsgBuf[channel] = msgBuf
	go func() {
		for msg := range msgBuf {
			shard.Mu.RLock()
			conns := shard.Subs[channel]
			for conn := range conns {
				conn := conn
				err := broadcastPool.Submit(func() {
					success := false
					for i := 0; i < 3; i++ {
						if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
							log.Printf("broadcast error: %v, retry %d", err, i+1)
						} else {
							success = true
							break
						}
					}
					if !success {
						log.Printf("conn write failed after retries, will remove from channel: %v", conn.RemoteAddr())
						shard := GetChannelShard(channel)
						shard.Mu.Lock()
						delete(shard.Subs[channel], conn)
						if len(shard.Subs[channel]) == 0 {
							delete(shard.Subs, channel)
						}
						shard.Mu.Unlock()
						cleanConnFromAllChannels(conn)
						_ = conn.Close()
					}
				})
				if err != nil {
					log.Printf("broadcastPool.Submit error: %v, conn: %v", err, conn.RemoteAddr())
				}
			}
			shard.Mu.RUnlock()
		}
		shard.Mu.Lock()
		delete(shard.MsgBuf, channel)
		shard.Mu.Unlock()
	}()
}

func GetChannelShard(channel string) *ChannelShard {
	h := fnv32(channel)
	return channelShards[h%shardNum]
}

func fnv32(key string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= 16777619
	}
	return h
}

type Message struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

func parseAction(msg []byte) (string, string) {
	var m Message
	if err := json.Unmarshal(msg, &m); err != nil {
		return "", ""
	}
	return m.Action, m.Channel
}

// cleanConnFromAllChannels drops every subscription a connection holds.
func cleanConnFromAllChannels(c *websocket.Conn) {
	for i := 0; i < shardNum; i++ {
		shard := channelShards[i]
		shard.Mu.Lock()
		for ch, conns := range shard.Subs {
			if conns != nil {
				if _, ok := conns[c]; ok {
					delete(conns, c)
					if len(conns) == 0 {
						delete(shard.Subs, ch)
					}
				}
			}
		}
		shard.Mu.Unlock()
	}
}

// Broadcast fans a payload out to a channel's subscribers. When the channel
// buffer is full the message is dropped to kafka for later inspection.
func Broadcast(channel string, msg []byte) {
	shard := GetChannelShard(channel)
	shard.Mu.Lock()
	ensureChannelDispatcher(shard, channel)
	buf, ok := shard.MsgBuf[channel]
	shard.Mu.Unlock()
	if ok && buf != nil {
		select {
		case buf <- msg:
		default:
			log.Printf("channel %s buffer full, drop message", channel)
			go saveDroppedMessage(channel, msg)
		}
	}
}

func saveDroppedMessage(channel string, msg []byte) {
	w := dalkafka.GetWriter("dropped_push_events")
	_ = w.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(channel),
		Value: msg,
	})
}

// StartPushSubscriber pumps the redis notification channels into the local
// broadcast shards. The ledger and market services publish through redis, so
// every gateway node sees every event regardless of which node produced it.
func StartPushSubscriber(ctx context.Context, cache *dalredis.Cache) {
	sub := cache.Subscribe(ctx, "market-*", "account-*")
	go func() {
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				Broadcast(msg.Channel, []byte(msg.Payload))
			}
		}
	}()
}

// RegisterWS mounts the subscription endpoint on the main server.
func RegisterWS(h *server.Hertz) {
	h.NoHijackConnPool = true

	h.GET("/ws", func(ctx context.Context, c *app.RequestContext) {
		err := upgrader.Upgrade(c, func(conn *websocket.Conn) {
			defer func() {
				cleanConnFromAllChannels(conn)
				if err := conn.Close(); err != nil {
					log.Printf("close error: %v", err)
				}
			}()

			for {
				mt, msg, err := conn.ReadMessage()
				if err != nil {
					break
				}

				action, channel := parseAction(msg)
				if action == "subscribe" && channel != "" {
					shard := GetChannelShard(channel)
					shard.Mu.Lock()
					if shard.Subs[channel] == nil {
						shard.Subs[channel] = make(map[*websocket.Conn]struct{})
					}
					shard.Subs[channel][conn] = struct{}{}
					ensureChannelDispatcher(shard, channel)
					shard.Mu.Unlock()
					ack := []byte(`{"type":"subscription_ack","channel":"` + channel + `"}`)
					if err := conn.WriteMessage(mt, ack); err != nil {
						log.Printf("ack error: %v", err)
					}
					continue
				}
				if action == "unsubscribe" && channel != "" {
					shard := GetChannelShard(channel)
					shard.Mu.Lock()
					if conns, ok := shard.Subs[channel]; ok {
						delete(conns, conn)
						if len(conns) == 0 {
							delete(shard.Subs, channel)
						}
					}
					shard.Mu.Unlock()
					ack := []byte(`{"type":"unsubscription_ack","channel":"` + channel + `"}`)
					if err := conn.WriteMessage(mt, ack); err != nil {
						log.Printf("ack error: %v", err)
					}
					continue
				}
			}
		})
		if err != nil {
			log.Printf("upgrade error: %v", err)
		}
	})
}
