// Пакет feed — генерация XML-фида объявлений в формате realty-feed.
//
// Предложения группируются по жилому комплексу и корпусу, пустые поля
// не выводятся. Запись на диск атомарная: временный файл, fsync, rename.
package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
)

// Namespace — пространство имён корневого элемента.
const Namespace = "http://webmaster.yandex.ru/schemas/feed/realty/2010-06"

// AllFeedName — имя сводного фида по всем владельцам.
const AllFeedName = "feed_all.xml"

// ErrNoData — после фильтрации по владельцу не осталось объявлений.
var ErrNoData = errors.New("нет данных для генерации фида")

// Generator строит документ фида.
type Generator struct {
	now func() time.Time
}

// New создаёт генератор. now — источник времени (nil: time.Now).
func New(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

// groupLevel — уровень группировки: элемент-обёртка и ключ.
type groupLevel struct {
	element string
	key     func(l *model.Listing) string
}

var groupLevels = []groupLevel{
	{"complex", func(l *model.Listing) string { return strings.TrimSpace(l.ComplexName) }},
	{"building", func(l *model.Listing) string { return strings.TrimSpace(l.BuildingName) }},
}

// Generate возвращает документ фида. Пустой ownerID — все владельцы.
func (g *Generator) Generate(rows []model.Listing, ownerID string) ([]byte, error) {
	selected := make([]*model.Listing, 0, len(rows))
	for i := range rows {
		if ownerID != "" && rows[i].OwnerID != ownerID {
			continue
		}
		selected = append(selected, &rows[i])
	}
	if len(selected) == 0 {
		return nil, ErrNoData
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "realty-feed"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: Namespace}},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, fmt.Errorf("запись корня фида: %w", err)
	}
	stamp := g.now().UTC().Format(time.RFC3339)
	if err := writeNode(enc, node{name: "generation-date", text: stamp}); err != nil {
		return nil, err
	}
	if err := writeGroups(enc, selected, 0); err != nil {
		return nil, err
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, fmt.Errorf("запись корня фида: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("сброс буфера фида: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Write генерирует фид и атомарно записывает его в path.
func (g *Generator) Write(rows []model.Listing, path, ownerID string) error {
	data, err := g.Generate(rows, ownerID)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

// WriteFile атомарно записывает документ: временный файл в каталоге
// назначения, fsync, rename. При ошибке временный файл удаляется.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("создание директории %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("создание временного файла: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия временного файла: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка установки прав: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}

// OwnerFeedName возвращает имя фида владельца.
func OwnerFeedName(ownerID string) string {
	return "feed_" + safeName(ownerID) + ".xml"
}

// FileFeedName возвращает имя фида одного загруженного файла.
func FileFeedName(fileID string) string {
	return "feed_" + safeName(fileID) + ".xml"
}

// safeName оставляет в идентификаторе только символы, допустимые в имени объекта.
func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, id)
}

// bucket — группа строк с одним ключом; пустой ключ не оборачивается.
type bucket struct {
	key  string
	rows []*model.Listing
}

// writeGroups выводит строки уровня level: группы в порядке первого
// появления ключа, строки внутри группы в исходном порядке.
func writeGroups(enc *xml.Encoder, rows []*model.Listing, level int) error {
	if level == len(groupLevels) {
		for _, l := range rows {
			if err := writeOffer(enc, l); err != nil {
				return err
			}
		}
		return nil
	}

	lvl := groupLevels[level]
	var buckets []*bucket
	index := make(map[string]*bucket)
	for _, l := range rows {
		k := lvl.key(l)
		b, ok := index[k]
		if !ok {
			b = &bucket{key: k}
			index[k] = b
			buckets = append(buckets, b)
		}
		b.rows = append(b.rows, l)
	}

	for _, b := range buckets {
		if b.key == "" {
			if err := writeGroups(enc, b.rows, level+1); err != nil {
				return err
			}
			continue
		}
		start := xml.StartElement{
			Name: xml.Name{Local: lvl.element},
			Attr: []xml.Attr{{Name: xml.Name{Local: "name"}, Value: b.key}},
		}
		if err := enc.EncodeToken(start); err != nil {
			return fmt.Errorf("запись группы %s: %w", lvl.element, err)
		}
		if err := writeGroups(enc, b.rows, level+1); err != nil {
			return err
		}
		if err := enc.EncodeToken(start.End()); err != nil {
			return fmt.Errorf("запись группы %s: %w", lvl.element, err)
		}
	}
	return nil
}

func writeOffer(enc *xml.Encoder, l *model.Listing) error {
	start := xml.StartElement{
		Name: xml.Name{Local: "offer"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "internal-id"}, Value: l.ListingID}},
	}
	if err := enc.EncodeToken(start); err != nil {
		return fmt.Errorf("запись предложения %s: %w", l.ListingID, err)
	}
	for _, d := range offerFields {
		for _, n := range d.build(d.name, l) {
			if err := writeNode(enc, n); err != nil {
				return err
			}
		}
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return fmt.Errorf("запись предложения %s: %w", l.ListingID, err)
	}
	return nil
}

func writeNode(enc *xml.Encoder, n node) error {
	start := xml.StartElement{Name: xml.Name{Local: n.name}}
	if err := enc.EncodeToken(start); err != nil {
		return fmt.Errorf("запись элемента %s: %w", n.name, err)
	}
	if len(n.children) == 0 {
		if err := enc.EncodeToken(xml.CharData(n.text)); err != nil {
			return fmt.Errorf("запись элемента %s: %w", n.name, err)
		}
	}
	for _, c := range n.children {
		if err := writeNode(enc, c); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return fmt.Errorf("запись элемента %s: %w", n.name, err)
	}
	return nil
}
