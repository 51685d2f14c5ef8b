package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaEnqueueOnce sets the dedup marker and appends to the stream in one step,
// so a transfer is placed on the outbox at most once per marker lifetime.
// KEYS[1]=marker KEYS[2]=stream ARGV[1]=ttl seconds ARGV[2..]=field/value pairs
const luaEnqueueOnce = `
local marker = KEYS[1]
local stream = KEYS[2]
local ttlSec = tonumber(ARGV[1])

if redis.call('SET', marker, '1', 'NX', 'EX', ttlSec) then
  local fields = {}
  for i = 2, #ARGV do
    fields[#fields + 1] = ARGV[i]
  end
  return redis.call('XADD', stream, '*', unpack(fields))
end
return false
`

// EnqueueOnce appends values to stream unless transferID was enqueued within ttl.
// It returns the stream entry id, or "" when the call was a duplicate.
func EnqueueOnce(ctx context.Context, rdb *rd.Client, stream, transferID string, ttl time.Duration, values map[string]string) (string, error) {
	if ttl < time.Second {
		ttl = time.Second
	}
	args := make([]any, 0, 1+2*len(values))
	args = append(args, int64(ttl/time.Second))
	for k, v := range values {
		args = append(args, k, v)
	}
	res, err := rdb.Eval(ctx, luaEnqueueOnce, []string{TransferEnqueuedKey(transferID), stream}, args...).Result()
	if err != nil {
		if err == rd.Nil {
			return "", nil
		}
		return "", err
	}
	id, _ := res.(string)
	return id, nil
}
