package stats

// Чистая логика слияния пакета сырых событий в корзины одной гранулярности.
// Слияние аддитивно: повторное применение того же пакета удваивает суммы,
// поэтому пакет должен быть удалён из журнала сразу после успешного
// применения ко всем гранулярностям.

// GroupByBucket раскладывает пакет событий по ключам корзин гранулярности
// и суммирует дельты внутри каждого ключа. События с пустыми метриками
// не порождают ключей.
func GroupByBucket(g Granularity, events []RawStatEvent) map[BucketKey]Metrics {
	groups := make(map[BucketKey]Metrics)
	for _, ev := range events {
		if ev.Metrics.IsZero() {
			continue
		}
		key := BucketKey{
			BucketIndex: g.BucketIndex(ev.EndTime),
			User:        ev.User,
			Room:        ev.Room,
		}
		acc, ok := groups[key]
		if !ok {
			acc = make(Metrics, len(ev.Metrics))
			groups[key] = acc
		}
		acc.Add(ev.Metrics)
	}
	return groups
}

// MergePlan - минимальный набор операций записи для одного слияния:
// вставки новых корзин с сырыми дельтами и обновления существующих
// с уже просуммированными итогами.
type MergePlan struct {
	Inserts []Bucket
	Updates []Bucket
}

// IsEmpty возвращает true, если план не содержит операций.
func (p MergePlan) IsEmpty() bool {
	return len(p.Inserts) == 0 && len(p.Updates) == 0
}

// BuildMergePlan строит план слияния сгруппированных дельт в существующее
// состояние корзин. Для ключа без текущей строки план содержит вставку
// с дельтами; для существующей строки - обновление с суммой текущих
// значений и дельт. Одно логическое чтение-изменение-запись на ключ.
func BuildMergePlan(g Granularity, groups map[BucketKey]Metrics, existing map[BucketKey]Metrics) MergePlan {
	var plan MergePlan
	for key, delta := range groups {
		bucket := Bucket{
			Granularity: g,
			BucketIndex: key.BucketIndex,
			User:        key.User,
			Room:        key.Room,
		}
		if current, ok := existing[key]; ok {
			merged := current.Clone()
			merged.Add(delta)
			bucket.Metrics = merged
			plan.Updates = append(plan.Updates, bucket)
		} else {
			bucket.Metrics = delta.Clone()
			plan.Inserts = append(plan.Inserts, bucket)
		}
	}
	return plan
}

// MaxByBucket сворачивает текущее состояние корзин в максимум каждой
// метрики по индексу корзины, независимо от игрока и комнаты. Результат
// используется для поднятия записей рекордов.
func MaxByBucket(g Granularity, buckets []Bucket) []MaxRecord {
	byIndex := make(map[int64]Metrics)
	order := make([]int64, 0)
	for _, b := range buckets {
		acc, ok := byIndex[b.BucketIndex]
		if !ok {
			acc = make(Metrics, len(b.Metrics))
			byIndex[b.BucketIndex] = acc
			order = append(order, b.BucketIndex)
		}
		acc.Raise(b.Metrics)
	}
	records := make([]MaxRecord, 0, len(order))
	for _, idx := range order {
		records = append(records, MaxRecord{
			Granularity: g,
			BucketIndex: idx,
			Metrics:     byIndex[idx],
		})
	}
	return records
}
