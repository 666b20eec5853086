// internal/llm/schema.go
package llm

import (
	"fmt"
	"strings"
)

// SchemaType OpenAPI 子集中的类型名，取值与 Gemini responseSchema 一致
type SchemaType string

const (
	TypeObject  SchemaType = "OBJECT"
	TypeArray   SchemaType = "ARRAY"
	TypeString  SchemaType = "STRING"
	TypeInteger SchemaType = "INTEGER"
	TypeNumber  SchemaType = "NUMBER"
	TypeBoolean SchemaType = "BOOLEAN"
)

// Schema 结构化输出的声明式描述，直接序列化为 responseSchema
type Schema struct {
	Type             SchemaType         `json:"type"`
	Description      string             `json:"description,omitempty"`
	Items            *Schema            `json:"items,omitempty"`
	Properties       map[string]*Schema `json:"properties,omitempty"`
	Required         []string           `json:"required,omitempty"`
	PropertyOrdering []string           `json:"propertyOrdering,omitempty"`
}

// String 字符串字段
func String(description string) *Schema {
	return &Schema{Type: TypeString, Description: description}
}

// Integer 整数字段
func Integer(description string) *Schema {
	return &Schema{Type: TypeInteger, Description: description}
}

// ArrayOf 数组字段
func ArrayOf(items *Schema, description string) *Schema {
	return &Schema{Type: TypeArray, Items: items, Description: description}
}

// Property 有序的对象属性
type Property struct {
	Name     string
	Schema   *Schema
	Optional bool
}

// Object 按给定顺序构造对象，非 Optional 的属性进入 required
func Object(description string, props ...Property) *Schema {
	s := &Schema{
		Type:        TypeObject,
		Description: description,
		Properties:  make(map[string]*Schema, len(props)),
	}
	for _, p := range props {
		s.Properties[p.Name] = p.Schema
		s.PropertyOrdering = append(s.PropertyOrdering, p.Name)
		if !p.Optional {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

// Validate 检查 schema 自身是否自洽
func (s *Schema) Validate() error {
	return s.validate("$")
}

func (s *Schema) validate(path string) error {
	if s == nil {
		return fmt.Errorf("%s: schema is nil", path)
	}

	switch s.Type {
	case TypeObject:
		if len(s.Properties) == 0 {
			return fmt.Errorf("%s: object without properties", path)
		}
		for _, name := range s.Required {
			if _, ok := s.Properties[name]; !ok {
				return fmt.Errorf("%s: required property %q not declared", path, name)
			}
		}
		for name, prop := range s.Properties {
			if err := prop.validate(path + "." + name); err != nil {
				return err
			}
		}
	case TypeArray:
		if s.Items == nil {
			return fmt.Errorf("%s: array without items", path)
		}
		return s.Items.validate(path + "[]")
	case TypeString, TypeInteger, TypeNumber, TypeBoolean:
	default:
		return fmt.Errorf("%s: unknown type %q", path, s.Type)
	}
	return nil
}

// JSONSchema 转成小写类型名的 JSON Schema，供 OpenAI 兼容接口的 response_format 使用
func (s *Schema) JSONSchema() map[string]interface{} {
	if s == nil {
		return nil
	}

	out := map[string]interface{}{"type": strings.ToLower(string(s.Type))}
	if s.Description != "" {
		out["description"] = s.Description
	}

	switch s.Type {
	case TypeObject:
		props := make(map[string]interface{}, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = prop.JSONSchema()
		}
		out["properties"] = props
		out["additionalProperties"] = false
		if len(s.Required) > 0 {
			out["required"] = append([]string(nil), s.Required...)
		}
	case TypeArray:
		out["items"] = s.Items.JSONSchema()
	}
	return out
}
