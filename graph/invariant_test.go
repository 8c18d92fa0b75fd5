package graph

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/relgraph/identity"
)

func pick[T any](r *rand.Rand, list []T) T {
	return list[r.IntN(len(list))]
}

// TestRandomOperationsKeepInversesConsistent applies a long random sequence
// of canonical and local operations and checks after every step that each
// local reference is mirrored by its inverse.
func TestRandomOperationsKeepInversesConsistent(t *testing.T) {
	t.Parallel()

	for _, seed := range []uint64{1, 7, 42} {
		t.Run("", func(t *testing.T) {
			t.Parallel()

			r := rand.New(rand.NewPCG(seed, seed*31))
			f := newFixture(t)
			users := make([]*identity.Identifier, 5)
			for i := range users {
				users[i] = f.user(string(rune('1' + i)))
			}
			pets := ids(f.rec("pet", "1"), f.rec("pet", "2"), f.rec("pet", "3"))
			tags := ids(f.rec("tag", "1"), f.rec("tag", "2"))

			subset := func(list []*identity.Identifier) []*identity.Identifier {
				var out []*identity.Identifier
				for _, id := range list {
					if r.IntN(2) == 0 {
						out = append(out, id)
					}
				}
				r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
				return out
			}
			maybe := func(list []*identity.Identifier) *identity.Identifier {
				if r.IntN(4) == 0 {
					return nil
				}
				return pick(r, list)
			}
			many := []string{"friends", "followers", "following"}

			for range 400 {
				owner := pick(r, users)
				switch r.IntN(12) {
				case 0:
					f.pushMany(owner, pick(r, many), subset(users)...)
				case 1:
					f.update(AddToRelatedRecords{Record: owner, Field: pick(r, many), Value: subset(users), Index: r.IntN(4) - 1})
				case 2:
					f.update(RemoveFromRelatedRecords{Record: owner, Field: pick(r, many), Value: subset(users)})
				case 3:
					f.update(ReplaceRelatedRecords{Record: owner, Field: pick(r, many), Value: subset(users)})
				case 4:
					f.pushOne(owner, "bestFriend", maybe(users))
				case 5:
					f.update(ReplaceRelatedRecord{Record: owner, Field: "bestFriend", Value: maybe(users)})
				case 6:
					f.pushOne(pick(r, pets), "owner", maybe(users))
				case 7:
					f.update(ReplaceRelatedRecords{Record: owner, Field: "pets", Value: subset(pets)})
				case 8:
					f.pushMany(owner, "tags", subset(tags)...)
				case 9:
					require.NoError(t, f.g.RollbackRelationships(owner))
				case 10:
					require.NoError(t, f.g.Unload(owner))
				case 11:
					f.update(DeleteRecord{Record: pick(r, pets)})
				}
				checkLocalConsistency(t, f.g)
			}
		})
	}
}
